package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Create(user *domain.User) error
	UpdateLoginCounters(userID uint, failedAttempts int, lastFailedLogin *time.Time) error
	ListPaged(req PageRequest) (*PageResult[domain.User], error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, mapUserErr(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.Where("LOWER(email) = ?", normalized).First(&u).Error; err != nil {
		return nil, mapUserErr(err)
	}
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// UpdateLoginCounters writes both lockout columns in one statement so the
// pair never disagrees on disk.
func (r *GormUserRepository) UpdateLoginCounters(userID uint, failedAttempts int, lastFailedLogin *time.Time) error {
	if lastFailedLogin == nil {
		failedAttempts = 0
	}
	res := r.db.Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]any{
		"failed_login_attempts": failedAttempts,
		"last_failed_login":     lastFailedLogin,
		"updated_at":            time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) ListPaged(req PageRequest) (*PageResult[domain.User], error) {
	req = normalizePageRequest(req)
	var total int64
	if err := r.db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var users []domain.User
	err := r.db.Order("id asc").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return &PageResult[domain.User]{
		Items:      users,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, req.PageSize),
	}, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
