// Package journal records bridge request lifecycle events in Postgres via pgx.
package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "journal:pool"

// ApplicationName tags journal sessions in pg_stat_activity unless the URL sets one.
const ApplicationName = "meet-bridge-journal"

// The journal writes one row per lifecycle event; a small pool keeps up.
const (
	maxConns = 8
	minConns = 1
)

// NewPool connects to databaseURL and pings it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping %s@%s/%s: %w", logPrefix,
			config.ConnConfig.User, config.ConnConfig.Host, config.ConnConfig.Database, err)
	}

	slog.Info(fmt.Sprintf("%s - Journal connected to %s/%s", logPrefix, config.ConnConfig.Host, config.ConnConfig.Database))
	return pool, nil
}

func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%s - database URL is empty", logPrefix)
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	config.MaxConns = maxConns
	config.MinConns = minConns
	if config.ConnConfig.RuntimeParams == nil {
		config.ConnConfig.RuntimeParams = map[string]string{}
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return config, nil
}
