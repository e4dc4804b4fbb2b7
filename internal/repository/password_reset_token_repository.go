package repository

import (
	"errors"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"

	"gorm.io/gorm"
)

var ErrResetTokenNotFound = errors.New("password reset token not found")

type PasswordResetTokenRepository interface {
	Create(token *domain.PasswordResetToken) error
	InvalidateActiveByUser(userID uint, now time.Time) error
	FindActiveByHash(hash string, now time.Time) (*domain.PasswordResetToken, error)
	Redeem(tokenID, userID uint, passwordHash string, now time.Time) error
}

type GormPasswordResetTokenRepository struct {
	db *gorm.DB
}

func NewPasswordResetTokenRepository(db *gorm.DB) PasswordResetTokenRepository {
	return &GormPasswordResetTokenRepository{db: db}
}

func (r *GormPasswordResetTokenRepository) Create(token *domain.PasswordResetToken) error {
	return r.db.Create(token).Error
}

func (r *GormPasswordResetTokenRepository) InvalidateActiveByUser(userID uint, now time.Time) error {
	return r.db.Model(&domain.PasswordResetToken{}).
		Where("user_id = ? AND used_at IS NULL AND expires_at > ?", userID, now).
		Updates(map[string]any{"used_at": now, "updated_at": now}).Error
}

func (r *GormPasswordResetTokenRepository) FindActiveByHash(hash string, now time.Time) (*domain.PasswordResetToken, error) {
	var token domain.PasswordResetToken
	err := r.db.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Redeem marks the token used, stores the new password hash and clears the
// lockout counters. Nothing is written when the token was already consumed.
func (r *GormPasswordResetTokenRepository) Redeem(tokenID, userID uint, passwordHash string, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.PasswordResetToken{}).
			Where("id = ? AND user_id = ? AND used_at IS NULL", tokenID, userID).
			Updates(map[string]any{"used_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrResetTokenNotFound
		}
		res = tx.Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]any{
			"password_hash":         passwordHash,
			"failed_login_attempts": 0,
			"last_failed_login":     nil,
			"updated_at":            now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
