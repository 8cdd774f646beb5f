package models

// Product maps to the `products` table. A sellable plan bound to exactly
// one panel.
type Product struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code         string `gorm:"column:code;size:100;uniqueIndex" json:"code"`
	Name         string `gorm:"column:name;size:300" json:"name"`
	Price        int64  `gorm:"column:price" json:"price"`
	VolumeGB     int    `gorm:"column:volume_gb" json:"volume_gb"`
	DurationDays int    `gorm:"column:duration_days" json:"duration_days"`
	PanelCode    string `gorm:"column:panel_code;size:100;index" json:"panel_code"`
	IsTest       bool   `gorm:"column:is_test;default:false" json:"is_test"`
	Status       string `gorm:"column:status;size:50;default:'active'" json:"status"`
}

func (Product) TableName() string {
	return "products"
}

// IsActive reports whether the product can still be sold.
func (p *Product) IsActive() bool {
	return p.Status == "active"
}
