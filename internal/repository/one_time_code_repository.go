package repository

import (
	"errors"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"

	"gorm.io/gorm"
)

var ErrCodeNotFound = errors.New("one-time code not found")

type OneTimeCodeRepository interface {
	Create(code *domain.OneTimeCode) error
	LatestUnused(userID uint) (*domain.OneTimeCode, error)
	ListByUser(userID uint) ([]domain.OneTimeCode, error)
	CountByUser(userID uint) (int64, error)
	CompleteVerification(userID, codeID uint) error
}

type GormOneTimeCodeRepository struct {
	db *gorm.DB
}

func NewOneTimeCodeRepository(db *gorm.DB) OneTimeCodeRepository {
	return &GormOneTimeCodeRepository{db: db}
}

func (r *GormOneTimeCodeRepository) Create(code *domain.OneTimeCode) error {
	return r.db.Create(code).Error
}

func (r *GormOneTimeCodeRepository) LatestUnused(userID uint) (*domain.OneTimeCode, error) {
	var code domain.OneTimeCode
	err := r.db.Where("user_id = ? AND is_used = ?", userID, false).
		Order("created_at desc").Order("id desc").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *GormOneTimeCodeRepository) ListByUser(userID uint) ([]domain.OneTimeCode, error) {
	var codes []domain.OneTimeCode
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Order("id desc").Find(&codes).Error
	return codes, err
}

func (r *GormOneTimeCodeRepository) CountByUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&domain.OneTimeCode{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CompleteVerification consumes codeID, closes every other unused code of
// the user and activates the account in a single transaction. A zero codeID
// skips the matched-code guard.
func (r *GormOneTimeCodeRepository) CompleteVerification(userID, codeID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if codeID != 0 {
			res := tx.Model(&domain.OneTimeCode{}).
				Where("id = ? AND user_id = ? AND is_used = ?", codeID, userID, false).
				Update("is_used", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrCodeNotFound
			}
		}
		if err := tx.Model(&domain.OneTimeCode{}).
			Where("user_id = ? AND is_used = ?", userID, false).
			Update("is_used", true).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.User{}).Where("id = ?", userID).
			Updates(map[string]any{"is_active": true, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
