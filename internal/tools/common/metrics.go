package common

import (
	"context"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
)

// RecordRun reports the outcome and duration of one tool command.
func RecordRun(ctx context.Context, tool, command string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordToolCommandRun(ctx, tool, command, status)
	observability.RecordToolCommandDuration(ctx, tool, command, status, time.Since(start))
}
