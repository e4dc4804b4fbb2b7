package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"

	"gorm.io/gorm"
)

type DemoUser struct {
	Email    string
	FullName string
	Password string
}

type SeedReport struct {
	Email   string `json:"email"`
	Created bool   `json:"created"`
	DryRun  bool   `json:"dry_run"`
	Noop    bool   `json:"noop"`
}

// SeedDemoUser creates a verified account for local testing. An existing
// account with the same email is left untouched.
func SeedDemoUser(db *gorm.DB, in DemoUser, dryRun bool) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if violations := security.PasswordPolicyViolations(in.Password); len(violations) > 0 {
		return nil, fmt.Errorf("demo password rejected: %s", strings.Join(violations, " "))
	}
	report := &SeedReport{Email: email, DryRun: dryRun}

	var existing domain.User
	err := db.Where("LOWER(email) = ?", email).First(&existing).Error
	switch {
	case err == nil:
		report.Noop = true
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "noop")
		return report, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return nil, err
	}
	if dryRun {
		return report, nil
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		fullName = "Demo Donor"
	}
	if err := db.Create(&domain.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
	}).Error; err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return nil, err
	}
	report.Created = true
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}
