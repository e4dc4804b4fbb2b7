package service

import (
	"errors"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetByID(id uint) (*domain.User, error) {
	u, err := s.userRepo.FindByID(id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) List(page, pageSize int) (*repository.PageResult[domain.User], error) {
	return s.userRepo.ListPaged(repository.PageRequest{Page: page, PageSize: pageSize})
}
