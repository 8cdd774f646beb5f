package repository

import (
	"gorm.io/gorm"

	"sarvbot/internal/models"
)

// PurchaseStore performs the financial commit of a purchase as one
// transaction: conditional balance debit, optional referral credit, and
// invoice insert. Either all three land or none do.
type PurchaseStore struct {
	db *gorm.DB
}

func NewPurchaseStore(db *gorm.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// Commit debits price from the buyer, credits the referrer if present,
// and persists the invoice. The debit is guarded against concurrent
// spends; an insufficient balance at update time aborts the whole
// transaction with apperr.InsufficientBalance.
func (s *PurchaseStore) Commit(invoice *models.Invoice, referrerID string, referralReward int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := debitBalance(tx, invoice.UserID, invoice.Price); err != nil {
			return err
		}
		if referrerID != "" && referralReward > 0 {
			if err := creditBalance(tx, referrerID, referralReward); err != nil {
				return err
			}
		}
		return tx.Create(invoice).Error
	})
}
