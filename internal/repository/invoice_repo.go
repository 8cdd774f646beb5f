package repository

import (
	"errors"

	"gorm.io/gorm"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
)

// InvoiceRepository handles invoice table access.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByID returns an invoice.
func (r *InvoiceRepository) FindByID(id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice")
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByUserID returns all invoices for a user, newest first.
func (r *InvoiceRepository) FindByUserID(userID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

// ListByStatus returns up to limit invoices in any of the given
// statuses, excluding test products. Used by the warning and cleanup
// workers.
func (r *InvoiceRepository) ListByStatus(statuses []string, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("status IN ?", statuses).
		Where("product_code NOT IN (?)",
			r.db.Model(&models.Product{}).Select("code").Where("is_test = ?", true)).
		Order("created_at").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// ListTestByStatus is ListByStatus restricted to test products. Used by
// the test account cleanup worker.
func (r *InvoiceRepository) ListTestByStatus(statuses []string, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("status IN ?", statuses).
		Where("product_code IN (?)",
			r.db.Model(&models.Product{}).Select("code").Where("is_test = ?", true)).
		Order("created_at").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// Create inserts an invoice.
func (r *InvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// TransitionStatus conditionally moves an invoice from one of the given
// statuses to a new status, reporting whether the row changed. A second
// worker observing the same invoice after a transition gets false and
// skips redundant action.
func (r *InvoiceRepository) TransitionStatus(id string, from []string, to string) (bool, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
