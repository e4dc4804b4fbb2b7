package database

import (
	"context"
	"strings"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteScheme = "sqlite://"

func Open(cfg *config.Config) (*gorm.DB, error) {
	start := time.Now()
	db, err := gorm.Open(Dialector(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	observability.RecordDatabaseStartupDuration(context.Background(), "connect", time.Since(start))
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "connect", "error")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "connect", "success")
	return db, nil
}

// Dialector picks sqlite for sqlite:// URLs (local runs) and postgres for
// everything else.
func Dialector(url string) gorm.Dialector {
	if strings.HasPrefix(url, sqliteScheme) {
		return sqlite.Open(strings.TrimPrefix(url, sqliteScheme))
	}
	return postgres.Open(url)
}
