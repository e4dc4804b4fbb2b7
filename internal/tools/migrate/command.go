package migrate

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
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Accounts schema migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newCommand(opts, "up", "Apply schema migrations", Up),
		newCommand(opts, "status", "Report which account tables exist", StatusDetails),
		newCommand(opts, "plan", "Show the tables a migration would create (dry-run)", PlanDetails),
	)
	return cmd
}

func newCommand(opts *options, use, short string, fn func(context.Context, *gorm.DB) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			title := "migrate " + use
			start := time.Now()
			details, err := run(opts, title, func(ctx context.Context) ([]string, error) {
				db, err := loadDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				defer func() { _ = sqlDB.Close() }()
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				return fn(ctx, db)
			})
			common.RecordRun(cmd.Context(), "migrate", use, start, err)
			if opts.ci {
				common.PrintCIResult(err == nil, title, details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

// Up applies AutoMigrate for every account model.
func Up(_ context.Context, db *gorm.DB) ([]string, error) {
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	tables, err := database.Status(db)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Table)
	}
	return []string{"schema migration applied", "tables: " + strings.Join(names, ", ")}, nil
}

func StatusDetails(_ context.Context, db *gorm.DB) ([]string, error) {
	tables, err := database.Status(db)
	if err != nil {
		return nil, err
	}
	details := make([]string, 0, len(tables)+1)
	pending := 0
	for _, t := range tables {
		state := "present"
		if !t.Exists {
			state = "missing"
			pending++
		}
		details = append(details, fmt.Sprintf("%s: %s", t.Table, state))
	}
	details = append(details, fmt.Sprintf("pending tables: %d", pending))
	return details, nil
}

func PlanDetails(_ context.Context, db *gorm.DB) ([]string, error) {
	tables, err := database.Status(db)
	if err != nil {
		return nil, err
	}
	var details []string
	for _, t := range tables {
		if t.Exists {
			details = append(details, "would reconcile columns and indexes on "+t.Table)
			continue
		}
		details = append(details, "would create "+t.Table)
	}
	return append(details, "no mutation executed in plan mode"), nil
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func loadDB(envFile string) (*gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.Open(cfg)
}
