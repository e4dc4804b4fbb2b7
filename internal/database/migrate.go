package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"

	"gorm.io/gorm"
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.OneTimeCode{},
		&domain.PasswordResetToken{},
	}
}

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}

type TableStatus struct {
	Table  string `json:"table"`
	Exists bool   `json:"exists"`
}

// Status reports which model tables exist without changing the schema.
func Status(db *gorm.DB) ([]TableStatus, error) {
	out := make([]TableStatus, 0, len(Models()))
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", m, err)
		}
		out = append(out, TableStatus{
			Table:  stmt.Schema.Table,
			Exists: db.Migrator().HasTable(m),
		})
	}
	return out, nil
}
