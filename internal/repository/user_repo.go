package repository

import (
	"errors"

	"gorm.io/gorm"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
)

// UserRepository handles user table access.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID finds a user by Telegram chat ID.
func (r *UserRepository) FindByID(chatID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", chatID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Exists checks whether a user with the given ID exists.
func (r *UserRepository) Exists(chatID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("id = ?", chatID).Count(&count).Error
	return count > 0, err
}

// DebitBalance atomically subtracts amount, conditioned on sufficient
// balance at update time. Returns InsufficientBalance when the guard
// does not match; this is the only protection against two purchases
// racing the same balance.
func (r *UserRepository) DebitBalance(chatID string, amount int64) error {
	return debitBalance(r.db, chatID, amount)
}

// CreditBalance atomically adds amount (referral rewards, refunds).
func (r *UserRepository) CreditBalance(chatID string, amount int64) error {
	return creditBalance(r.db, chatID, amount)
}

func debitBalance(tx *gorm.DB, chatID string, amount int64) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND balance >= ?", chatID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.InsufficientBalance()
	}
	return nil
}

func creditBalance(tx *gorm.DB, chatID string, amount int64) error {
	return tx.Model(&models.User{}).Where("id = ?", chatID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}
