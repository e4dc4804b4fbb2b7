package domain

import "time"

type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName            string     `gorm:"size:255;not null" json:"full_name"`
	PasswordHash        string     `gorm:"size:1024;not null" json:"-"`
	IsActive            bool       `gorm:"not null;default:false" json:"is_active"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
