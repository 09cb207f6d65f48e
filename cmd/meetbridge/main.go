// Package main is the entrypoint for meetbridge.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/internal/config"
	"github.com/meetone/meet-bridge/internal/server"
	"github.com/meetone/meet-bridge/pkg/bridge"
	"github.com/meetone/meet-bridge/pkg/codec"
	"github.com/meetone/meet-bridge/pkg/commsutil"
	"github.com/meetone/meet-bridge/pkg/events"
	"github.com/meetone/meet-bridge/pkg/journal"
)

const usage = `Usage: meetbridge [command]
       meetbridge serve                      Start the bridge: serve requests on bridge.<scheme>.requests, HTTP health.
       meetbridge uri <route> [json] [id]    Print the URI for route with params json (default {}).
       meetbridge decode <token>             Decode a params token to JSON.
       meetbridge parse <uri>                Split a bridge URI and decode its params.
       meetbridge routes                     List known routes.
       meetbridge call <route> [json]        Send one request to the host and print its response.
       meetbridge listen                     Print request lifecycle events from the host link.
       meetbridge migrate up                 Apply journal migrations not applied yet.
       meetbridge migrate status             Show journal schema status.
       meetbridge ensure-db [name]           Create database if missing (default name: meetbridge). Uses DATABASE_URL host/user.
       meetbridge requests [limit]           List recent journal rows.
       meetbridge prune <age>                Delete settled journal rows older than age (e.g. 72h).
       meetbridge clear                      Truncate the request journal; schema is preserved.

Environment: BRIDGE_SCHEME, COMMS_URL, HOST_VERSION, BRIDGE_VERSION_COMPARE, DISPATCH_RETRY_DELAY,
DISPATCH_MAX_ATTEMPTS, BRIDGE_REQUEST_TIMEOUT, BRIDGE_REQUEST_SUBJECT, DATABASE_URL (journal), MIGRATION_PATH,
BRIDGE_HTTP_ADDR, LOG_LEVEL.
`

// defaultCallTimeout bounds `meetbridge call` when BRIDGE_REQUEST_TIMEOUT is unset.
const defaultCallTimeout = 2 * time.Minute

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "uri":
		if len(args) < 2 {
			log.Fatalf("meetbridge uri: require route")
		}
		if err := runURI(os.Stdout, args[1], argAt(args, 2), argAt(args, 3)); err != nil {
			log.Fatalf("meetbridge uri: %v", err)
		}
		return
	case "decode":
		if len(args) < 2 {
			log.Fatalf("meetbridge decode: require token")
		}
		if err := runDecode(os.Stdout, args[1]); err != nil {
			log.Fatalf("meetbridge decode: %v", err)
		}
		return
	case "parse":
		if len(args) < 2 {
			log.Fatalf("meetbridge parse: require uri")
		}
		if err := runParse(os.Stdout, args[1]); err != nil {
			log.Fatalf("meetbridge parse: %v", err)
		}
		return
	case "routes":
		runRoutes(os.Stdout)
		return
	case "call":
		if len(args) < 2 {
			log.Fatalf("meetbridge call: require route")
		}
		if err := runCall(os.Stdout, args[1], argAt(args, 2)); err != nil {
			log.Fatalf("meetbridge call: %v", err)
		}
		return
	case "listen":
		if err := runListen(os.Stdout); err != nil {
			log.Fatalf("meetbridge listen: %v", err)
		}
		return
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("meetbridge migrate: require subcommand (up, status)")
		}
		switch sub := args[1]; sub {
		case "up":
			if err := runMigrateUp(os.Stdout); err != nil {
				log.Fatalf("meetbridge migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(os.Stdout); err != nil {
				log.Fatalf("meetbridge migrate status: %v", err)
			}
		default:
			log.Fatalf("meetbridge migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "ensure-db":
		dbName := "meetbridge"
		if name := argAt(args, 1); name != "" {
			dbName = name
		}
		if err := runEnsureDB(os.Stdout, dbName); err != nil {
			log.Fatalf("meetbridge ensure-db: %v", err)
		}
		return
	case "requests":
		if err := runRequests(os.Stdout, argAt(args, 1)); err != nil {
			log.Fatalf("meetbridge requests: %v", err)
		}
		return
	case "prune":
		if len(args) < 2 {
			log.Fatalf("meetbridge prune: require age (e.g. 72h)")
		}
		if err := runPrune(os.Stdout, args[1]); err != nil {
			log.Fatalf("meetbridge prune: %v", err)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("meetbridge clear: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("meetbridge: %v", err)
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// parseParams reads a JSON object argument; empty means {}.
func parseParams(raw string) (map[string]any, error) {
	params := map[string]any{}
	if raw == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel)
	return cfg, nil
}

func runURI(w io.Writer, route, rawParams, callbackID string) error {
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// no host version: URI generation needs no host link
	b, err := bridge.New(bridge.NewParams{Scheme: cfg.Scheme})
	if err != nil {
		return err
	}
	uri, err := b.GenerateURI(bridge.GenerateURIInput{RouteName: route, Params: params, CallbackID: callbackID})
	if err != nil {
		return err
	}
	if !bridge.IsKnownRoute(route) {
		fmt.Fprintf(os.Stderr, "warning: %q is not a known route\n", route)
	}
	_, err = fmt.Fprintln(w, uri)
	return err
}

func runDecode(w io.Writer, token string) error {
	// tokens copied out of a URI may still be percent-escaped; '+' is base64, not a space
	if unescaped, err := url.PathUnescape(token); err == nil {
		token = unescaped
	}
	raw, err := codec.DecodeRaw(token)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return writeJSON(w, v)
}

func runParse(w io.Writer, uri string) error {
	parsed, err := codec.ParseURI(uri)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"protocol":   parsed.Protocol,
		"route":      parsed.Route,
		"callbackId": parsed.CallbackID,
		"hash":       parsed.Hash,
		"params":     parsed.Params,
	})
}

func runRoutes(w io.Writer) {
	for _, r := range bridge.Routes() {
		fmt.Fprintln(w, r)
	}
}

func runCall(w io.Writer, route, rawParams string) error {
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.RequestTimeout <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	s, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Bridge().Call(ctx, route, params)
	if err != nil {
		return err
	}
	if res.Kind() == bridge.ResultImmediate {
		fmt.Fprintf(os.Stderr, "host %q does not post responses; URI only\n", cfg.HostVersion)
		return writeJSON(w, map[string]any{"uri": res.URI()})
	}

	resp, err := res.Await(ctx)
	if err != nil {
		return err
	}
	var body any = map[string]any{}
	if len(resp.Raw) > 0 {
		if err := json.Unmarshal(resp.Raw, &body); err != nil {
			return err
		}
	}
	if err := writeJSON(w, map[string]any{"callbackId": res.Pending().ID(), "result": body}); err != nil {
		return err
	}
	if !resp.OK() {
		return &bridge.HostError{Response: resp}
	}
	return nil
}

func runListen(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	nc, err := commsutil.Connect(commsutil.ConnectParams{URL: cfg.COMMSURL, Name: cfg.COMMSName + "-listen"})
	if err != nil {
		return err
	}
	defer nc.Close()

	// kind subjects only; granular subjects repeat every event
	subject := cfg.EventPrefix() + ".*"
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var e events.RequestEvent
		if err := commsutil.DecodePayload(msg.Data, &e); err != nil {
			fmt.Fprintf(os.Stderr, "bad event on %s: %v\n", msg.Subject, err)
			return
		}
		line := fmt.Sprintf("%s %-10s %-20s %s", e.Timestamp, e.Kind, e.Route, e.CallbackID)
		if e.Code != nil {
			line += " code=" + strconv.Itoa(*e.Code)
		}
		if e.Error != "" {
			line += " error=" + strconv.Quote(e.Error)
		}
		fmt.Fprintln(w, line)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()
	fmt.Fprintf(os.Stderr, "listening on %s\n", subject)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

// withJournal opens the journal pool for DB-dependent commands.
func withJournal(fn func(ctx context.Context, cfg *config.Config, repo *journal.Repository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := fn(ctx, cfg, journal.NewRepository(pool)); err != nil {
		return err
	}
	return nil
}

func runMigrateUp(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := journal.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := journal.RunMigrations(ctx, pool, migrations)
	for _, name := range applied {
		fmt.Fprintf(w, "Applied %s\n", name)
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(w, "Journal schema is up to date.")
	}
	return nil
}

func runMigrateStatus(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	report, err := journal.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Migration status: %s\n", report)
	return err
}

func runEnsureDB(w io.Writer, dbName string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	targetURL, err := withDatabaseName(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := journal.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Database %q is ready.\n", dbName)
	return err
}

// withDatabaseName replaces the database in rawURL, keeping its query (e.g. sslmode).
func withDatabaseName(rawURL, dbName string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

func runRequests(w io.Writer, rawLimit string) error {
	limit := 20
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 {
			return fmt.Errorf("limit must be a positive integer, got %q", rawLimit)
		}
		limit = n
	}
	return withJournal(func(ctx context.Context, _ *config.Config, repo *journal.Repository) error {
		rows, err := repo.ListRequests(ctx, journal.ListRequestsParams{Limit: limit})
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintln(w, formatRequest(r))
		}
		return nil
	})
}

func formatRequest(r journal.Request) string {
	id := "-"
	if r.CallbackID != nil {
		id = *r.CallbackID
	}
	line := fmt.Sprintf("%s %-10s %-20s %s", r.Created.UTC().Format(time.RFC3339), r.Status, r.Route, id)
	if r.Code != nil {
		line += " code=" + strconv.Itoa(*r.Code)
	}
	if r.Error != nil {
		line += " error=" + strconv.Quote(*r.Error)
	}
	return line
}

func runPrune(w io.Writer, rawAge string) error {
	age, err := time.ParseDuration(rawAge)
	if err != nil || age <= 0 {
		return fmt.Errorf("age must be a positive duration, got %q", rawAge)
	}
	return withJournal(func(ctx context.Context, _ *config.Config, repo *journal.Repository) error {
		n, err := repo.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "Pruned %d requests.\n", n)
		return err
	})
}

func runClear() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return journal.ClearJournal(ctx, pool)
}
