package repository

import (
	"errors"

	"gorm.io/gorm"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
)

// ProductRepository handles product table access.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByCode returns a product by its code.
func (r *ProductRepository) FindByCode(code string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("code = ?", code).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// FindActive returns all sellable products.
func (r *ProductRepository) FindActive() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("status = ?", "active").Find(&products).Error
	return products, err
}

// Create inserts a product.
func (r *ProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}
