package models

// User maps to the `users` table.
// Primary key is the Telegram chat ID stored as string.
type User struct {
	ID         string `gorm:"column:id;primaryKey;size:64" json:"id"`
	Username   string `gorm:"column:username;size:300" json:"username"`
	Balance    int64  `gorm:"column:balance;default:0" json:"balance"`
	ReferrerID string `gorm:"column:referrer_id;size:64" json:"referrer_id"`
	Status     string `gorm:"column:status;size:50;default:'active'" json:"status"`
	CreatedAt  int64  `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
