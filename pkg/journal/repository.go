package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetone/meet-bridge/pkg/events"
)

const repoLogPrefix = "journal:repository"

// ErrMissingCallbackID is returned when a correlated event has no callback id.
var ErrMissingCallbackID = errors.New("journal: event has no callback id")

// Repository provides database access for the request journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, callback_id, route, uri, status, code, error,
	created, dispatched_at, settled_at, modified`

// Record applies one lifecycle event. Events for the same callback id may
// arrive in any order; a settled row is never moved back to dispatched.
func (r *Repository) Record(ctx context.Context, event *events.RequestEvent) error {
	at := eventTime(event)

	switch event.Kind {
	case events.KindImmediate:
		_, err := r.pool.Exec(ctx,
			`INSERT INTO bridge_requests (route, uri, status, created, modified)
			 VALUES ($1, $2, $3, $4, $4)`,
			event.Route, event.URI, StatusImmediate, at)
		if err != nil {
			return fmt.Errorf("%s - insert immediate %s: %w", repoLogPrefix, event.Route, err)
		}
		return nil

	case events.KindDispatched:
		if event.CallbackID == "" {
			return ErrMissingCallbackID
		}
		_, err := r.pool.Exec(ctx,
			`INSERT INTO bridge_requests (callback_id, route, uri, status, created, dispatched_at, modified)
			 VALUES ($1, $2, $3, $4, $5, $5, $5)
			 ON CONFLICT (callback_id) DO UPDATE SET
			   uri = CASE WHEN EXCLUDED.uri <> '' THEN EXCLUDED.uri ELSE bridge_requests.uri END,
			   status = CASE WHEN bridge_requests.status IN ('resolved', 'rejected')
			                 THEN bridge_requests.status ELSE EXCLUDED.status END,
			   dispatched_at = EXCLUDED.dispatched_at,
			   modified = EXCLUDED.modified`,
			event.CallbackID, event.Route, event.URI, StatusDispatched, at)
		if err != nil {
			return fmt.Errorf("%s - record dispatched %s: %w", repoLogPrefix, event.CallbackID, err)
		}
		return nil

	case events.KindResolved, events.KindRejected:
		if event.CallbackID == "" {
			return ErrMissingCallbackID
		}
		status := StatusResolved
		if event.Kind == events.KindRejected {
			status = StatusRejected
		}
		var errText *string
		if event.Error != "" {
			errText = &event.Error
		}
		_, err := r.pool.Exec(ctx,
			`INSERT INTO bridge_requests (callback_id, route, uri, status, code, error, created, settled_at, modified)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7)
			 ON CONFLICT (callback_id) DO UPDATE SET
			   status = EXCLUDED.status,
			   code = EXCLUDED.code,
			   error = EXCLUDED.error,
			   settled_at = EXCLUDED.settled_at,
			   modified = EXCLUDED.modified`,
			event.CallbackID, event.Route, event.URI, status, event.Code, errText, at)
		if err != nil {
			return fmt.Errorf("%s - record %s %s: %w", repoLogPrefix, status, event.CallbackID, err)
		}
		return nil

	default:
		slog.Debug(fmt.Sprintf("%s - ignoring event kind %q", repoLogPrefix, event.Kind))
		return nil
	}
}

// GetRequest finds a request by callback id; nil when absent.
func (r *Repository) GetRequest(ctx context.Context, callbackID string) (*Request, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+`
		 FROM bridge_requests
		 WHERE callback_id = $1
		 LIMIT 1`, callbackID)
	return scanRequest(row)
}

// ListRequestsParams holds parameters for ListRequests.
type ListRequestsParams struct {
	Route  string
	Status string
	// Limit defaults to 20.
	Limit int
}

// ListRequests returns the most recent requests, newest first.
func (r *Repository) ListRequests(ctx context.Context, params ListRequestsParams) ([]Request, error) {
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}

	query := `SELECT ` + requestColumns + ` FROM bridge_requests WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if params.Route != "" {
		query += fmt.Sprintf(` AND route = $%d`, argIdx)
		args = append(args, params.Route)
		argIdx++
	}
	if params.Status != "" && params.Status != "all" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - list requests failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequestFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list requests rows: %w", repoLogPrefix, err)
	}
	return out, nil
}

// Prune deletes settled and immediate rows created before cutoff and returns how many were removed.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM bridge_requests
		 WHERE created < $1 AND status IN ('resolved', 'rejected', 'immediate')`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s - prune failed: %w", repoLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Pruned %d requests older than %s", repoLogPrefix, tag.RowsAffected(), cutoff.Format(time.RFC3339)))
	return tag.RowsAffected(), nil
}

func eventTime(event *events.RequestEvent) time.Time {
	if event.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.CallbackID, &req.Route, &req.URI, &req.Status, &req.Code, &req.Error,
		&req.Created, &req.DispatchedAt, &req.SettledAt, &req.Modified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan request failed: %w", repoLogPrefix, err)
	}
	return &req, nil
}

func scanRequestFromRows(rows pgx.Rows) (*Request, error) {
	var req Request
	err := rows.Scan(
		&req.ID, &req.CallbackID, &req.Route, &req.URI, &req.Status, &req.Code, &req.Error,
		&req.Created, &req.DispatchedAt, &req.SettledAt, &req.Modified,
	)
	if err != nil {
		return nil, fmt.Errorf("%s - scan request from rows failed: %w", repoLogPrefix, err)
	}
	return &req, nil
}
