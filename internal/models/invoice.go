package models

// Invoice lifecycle statuses. Transitions are driven only by the
// reconciliation workers and the purchase path:
//
//	ACTIVE -> END_OF_TIME | END_OF_VOLUME -> SENDEDWARN -> REMOVE_TIME
//	ACTIVE -> DISABLED (remote observed disabled, or test lapse)
//
// REMOVE_TIME and DISABLED are terminal.
const (
	InvoiceActive      = "ACTIVE"
	InvoiceEndOfTime   = "END_OF_TIME"
	InvoiceEndOfVolume = "END_OF_VOLUME"
	InvoiceSendedWarn  = "SENDEDWARN"
	InvoiceRemoveTime  = "REMOVE_TIME"
	InvoiceDisabled    = "DISABLED"
)

// Invoice maps to the `invoices` table. The durable record of one
// provisioning event.
type Invoice struct {
	ID              string `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID          string `gorm:"column:user_id;size:64;index" json:"user_id"`
	ProductCode     string `gorm:"column:product_code;size:100;index" json:"product_code"`
	PanelCode       string `gorm:"column:panel_code;size:100;index" json:"panel_code"`
	Username        string `gorm:"column:username;size:300;index" json:"username"`
	SubscriptionURL string `gorm:"column:subscription_url;type:text" json:"subscription_url"`
	Price           int64  `gorm:"column:price" json:"price"`
	VolumeGB        int    `gorm:"column:volume_gb" json:"volume_gb"`
	DurationDays    int    `gorm:"column:duration_days" json:"duration_days"`
	CreatedAt       int64  `gorm:"column:created_at" json:"created_at"`
	ExpireAt        int64  `gorm:"column:expire_at" json:"expire_at"`
	Status          string `gorm:"column:status;size:50;index" json:"status"`
}

func (Invoice) TableName() string {
	return "invoices"
}
