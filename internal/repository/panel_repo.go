package repository

import (
	"errors"

	"gorm.io/gorm"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
)

// PanelRepository handles panel table access.
type PanelRepository struct {
	db *gorm.DB
}

func NewPanelRepository(db *gorm.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// FindByCode returns a panel by its code.
func (r *PanelRepository) FindByCode(code string) (*models.Panel, error) {
	var panel models.Panel
	if err := r.db.Where("code = ?", code).First(&panel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("panel")
		}
		return nil, err
	}
	return &panel, nil
}

// FindActive returns all active panels.
func (r *PanelRepository) FindActive() ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Where("status = ?", "active").Find(&panels).Error
	return panels, err
}

// Create inserts a panel.
func (r *PanelRepository) Create(panel *models.Panel) error {
	return r.db.Create(panel).Error
}
