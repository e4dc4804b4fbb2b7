package accountsctl

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/database"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/tools/common"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "accountsctl", Short: "Operator tooling for donor accounts"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newSeedCommand(opts),
		newUnlockCommand(opts),
		newVerifyCommand(opts),
		newCodesCommand(opts),
		newUsersCommand(opts),
	)
	return cmd
}

func newSeedCommand(opts *options) *cobra.Command {
	var in database.DemoUser
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a verified demo account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "seed", func(t *Toolkit) ([]string, error) {
				return t.Seed(in, dryRun)
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "donor@example.com", "account email")
	cmd.Flags().StringVar(&in.FullName, "full-name", "Demo Donor", "account full name")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password (must satisfy the password policy)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}

func newUnlockCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear the login lockout for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "unlock", func(t *Toolkit) ([]string, error) {
				if err := requireEmail(email); err != nil {
					return nil, err
				}
				return t.Unlock(email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newVerifyCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Activate an account without a one-time code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "verify", func(t *Toolkit) ([]string, error) {
				if err := requireEmail(email); err != nil {
					return nil, err
				}
				return t.Verify(email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newCodesCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "List one-time codes issued to an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "codes", func(t *Toolkit) ([]string, error) {
				if err := requireEmail(email); err != nil {
					return nil, err
				}
				return t.Codes(email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newUsersCommand(opts *options) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "users", func(t *Toolkit) ([]string, error) {
				return t.Users(page, pageSize)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 25, "accounts per page")
	return cmd
}

func execute(cmd *cobra.Command, opts *options, name string, action func(*Toolkit) ([]string, error)) error {
	title := "accountsctl " + name
	start := time.Now()
	details, err := run(opts, title, func(ctx context.Context) ([]string, error) {
		cfg, db, err := loadConfigDB(opts.envFile)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer func() { _ = sqlDB.Close() }()
		}
		return action(NewToolkit(cfg, db, nil))
	})
	common.RecordRun(cmd.Context(), "accountsctl", name, start, err)
	if opts.ci {
		common.PrintCIResult(err == nil, title, details, err)
	}
	if err != nil {
		os.Exit(3)
	}
	return nil
}

func requireEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
