package domain

import "time"

// OneTimeCode stores a salted digest of an emailed verification code.
// Expiry is derived from CreatedAt and never persisted.
type OneTimeCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_otc_user_used_created,priority:1" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CodeHash  string    `gorm:"size:64;not null" json:"-"`
	Salt      string    `gorm:"size:32;not null" json:"-"`
	IsUsed    bool      `gorm:"not null;default:false;index:idx_otc_user_used_created,priority:2" json:"is_used"`
	CreatedAt time.Time `gorm:"not null;index:idx_otc_user_used_created,priority:3" json:"created_at"`
}
