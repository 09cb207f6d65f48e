package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "journal:clear"

// ClearJournal truncates bridge_requests. Schema is preserved; RESTART IDENTITY resets the id sequence.
func ClearJournal(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing request journal", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE bridge_requests RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Journal cleared", clearLogPrefix))
	return nil
}
