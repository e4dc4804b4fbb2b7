package accountsctl

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/database"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/service"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

// Toolkit holds the operator actions. Each returns human-readable detail lines.
type Toolkit struct {
	db           *gorm.DB
	users        repository.UserRepository
	codes        repository.OneTimeCodeRepository
	gate         *service.AuthGate
	registration *service.RegistrationService
}

func NewToolkit(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *Toolkit {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := security.SystemClock{}
	users := repository.NewUserRepository(db)
	codes := repository.NewOneTimeCodeRepository(db)
	policy := security.NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow)
	issuer := security.NewOTPIssuer(security.OTPConfig{TTL: cfg.OTPTTL}, clock)
	notifier := service.NewDevNotifier(logger, false)
	return &Toolkit{
		db:           db,
		users:        users,
		codes:        codes,
		gate:         service.NewAuthGate(users, policy, clock, logger),
		registration: service.NewRegistrationService(cfg, users, codes, issuer, session.NewMemoryStore(nil), notifier, logger),
	}
}

func (t *Toolkit) Seed(in database.DemoUser, dryRun bool) ([]string, error) {
	report, err := database.SeedDemoUser(t.db, in, dryRun)
	if err != nil {
		return nil, err
	}
	switch {
	case report.Noop:
		return []string{"account already exists: " + report.Email, "no changes made"}, nil
	case report.DryRun:
		return []string{"would create verified account: " + report.Email, "no mutation executed in dry-run mode"}, nil
	default:
		return []string{"created verified account: " + report.Email}, nil
	}
}

func (t *Toolkit) Unlock(email string) ([]string, error) {
	user, err := t.gate.Unlock(normalize(email))
	if err != nil {
		return nil, err
	}
	return []string{"cleared failed login attempts for " + user.Email}, nil
}

func (t *Toolkit) Verify(email string) ([]string, error) {
	user, err := t.registration.ForceVerify(email)
	if err != nil {
		return nil, err
	}
	return []string{"activated account " + user.Email, "outstanding codes marked used"}, nil
}

// Codes lists issued codes for an account. Hashes are never printed.
func (t *Toolkit) Codes(email string) ([]string, error) {
	user, err := t.users.FindByEmail(normalize(email))
	if err != nil {
		return nil, err
	}
	codes, err := t.codes.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("%s: %d code(s)", user.Email, len(codes))}
	for _, c := range codes {
		state := "unused"
		if c.IsUsed {
			state = "used"
		}
		details = append(details, fmt.Sprintf("#%d issued %s %s", c.ID, c.CreatedAt.UTC().Format(time.RFC3339), state))
	}
	return details, nil
}

func (t *Toolkit) Users(page, pageSize int) ([]string, error) {
	res, err := t.users.ListPaged(repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("page %d/%d, %d account(s)", res.Page, res.TotalPages, res.Total)}
	for _, u := range res.Items {
		state := "pending"
		if u.IsActive {
			state = "active"
		}
		details = append(details, fmt.Sprintf("#%d %s %s", u.ID, u.Email, state))
	}
	return details, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
