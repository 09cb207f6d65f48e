package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "journal:migrations"

// ledgerTable records applied migration files by name.
const ledgerTable = "bridge_journal_migrations"

// Migration is one .sql file from the migration directory.
type Migration struct {
	Name string
	SQL  string
}

// MigrationReport lists which migration files a database has applied.
type MigrationReport struct {
	Dir     string
	Applied []string
	Pending []string
}

func (r *MigrationReport) String() string {
	if len(r.Pending) == 0 {
		return fmt.Sprintf("up to date (%d applied from %s)", len(r.Applied), r.Dir)
	}
	return fmt.Sprintf("%d pending (%s), %d applied from %s; run 'meetbridge migrate up'",
		len(r.Pending), strings.Join(r.Pending, ", "), len(r.Applied), r.Dir)
}

// LoadMigrations reads the .sql files in dir, ordered by name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, e.Name(), err)
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// pendingMigrations keeps the migrations whose names are not in applied, in order.
func pendingMigrations(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Name] {
			out = append(out, m)
		}
	}
	return out
}

// RunMigrations applies the migrations not yet in the ledger, each in its own
// transaction together with its ledger row, and returns their names.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]string, error) {
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	pending := pendingMigrations(migrations, applied)
	names := make([]string, 0, len(pending))
	for _, m := range pending {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+ledgerTable+` (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return names, fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		slog.Info(fmt.Sprintf("%s - Journal schema up to date", migrationsLogPrefix))
	}
	return names, nil
}

// MigrationStatus compares the files in dir with the ledger.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, dir string) (*MigrationReport, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{Dir: dir}
	for _, m := range migrations {
		if applied[m.Name] {
			report.Applied = append(report.Applied, m.Name)
		}
	}
	for _, m := range pendingMigrations(migrations, applied) {
		report.Pending = append(report.Pending, m.Name)
	}
	return report, nil
}

// appliedMigrations creates the ledger if needed and returns the recorded names.
func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("%s - failed to create ledger: %w", migrationsLogPrefix, err)
	}

	rows, err := pool.Query(ctx, `SELECT name FROM `+ledgerTable)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read ledger: %w", migrationsLogPrefix, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read ledger: %w", migrationsLogPrefix, err)
	}

	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}
