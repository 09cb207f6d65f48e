// Package server wires the bridge process: host link, dispatcher, bridge,
// response listener, request subject, event publishers, optional request
// journal and the HTTP health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/internal/config"
	"github.com/meetone/meet-bridge/pkg/bridge"
	"github.com/meetone/meet-bridge/pkg/commsutil"
	"github.com/meetone/meet-bridge/pkg/dispatch"
	"github.com/meetone/meet-bridge/pkg/events"
	"github.com/meetone/meet-bridge/pkg/journal"
	"github.com/meetone/meet-bridge/pkg/listener"
)

const logPrefix = "server:server"

// bridgeForServer is the part of *bridge.Bridge the HTTP handlers read.
type bridgeForServer interface {
	Mode() bridge.Mode
	HostVersion() string
	PendingCount() int
}

// journalForServer is the part of *journal.Repository the HTTP handlers read.
type journalForServer interface {
	ListRequests(ctx context.Context, params journal.ListRequestsParams) ([]journal.Request, error)
}

// Server is the meet-bridge process.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	repo       *journal.Repository
	bridge     *bridge.Bridge
	listener   *listener.Listener
	httpServer *http.Server

	// request subject
	calls         caller
	ingress       *comms.Subscription
	ingressCtx    context.Context
	stopIngress   context.CancelFunc
	ingressMu     sync.Mutex
	ingressClosed bool
	inflight      sync.WaitGroup

	// read by the HTTP handlers; set from the fields above in New
	status  bridgeForServer
	journal journalForServer
	link    func() comms.Status
	dbPing  func(ctx context.Context) error

	closeOnce sync.Once
}

// New connects everything cfg describes. The returned Server is ready to
// Call through Bridge(); Close releases it.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg}

	// Step 1: Connect the host link
	nc, err := commsutil.Connect(commsutil.ConnectParams{URL: cfg.COMMSURL, Name: cfg.COMMSName})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to host link: %w", logPrefix, err)
	}
	s.nc = nc
	s.link = nc.Status

	// Step 2: Request journal (optional)
	publishers := []events.EventPublisher{
		events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.EventPrefix()}),
	}
	if cfg.JournalEnabled() {
		pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool
		s.dbPing = pool.Ping

		if cfg.RunMigrations {
			migrations, err := journal.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				s.closeResources()
				return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if _, err := journal.RunMigrations(ctx, pool, migrations); err != nil {
				s.closeResources()
				return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}

		s.repo = journal.NewRepository(pool)
		s.journal = s.repo
		publishers = append(publishers, journal.NewPublisher(s.repo, 0))
		slog.Info(fmt.Sprintf("%s - Request journal enabled", logPrefix))
	}

	// Step 3: Dispatcher and bridge
	poster := dispatch.NewCommsPoster(nc, cfg.Outbound())
	disp := dispatch.NewDispatcher(poster, dispatch.Config{
		RetryDelay:  cfg.DispatchRetryDelay,
		MaxAttempts: cfg.DispatchMaxAttempts,
	})
	b, err := bridge.New(bridge.NewParams{
		Scheme:         cfg.Scheme,
		Dispatcher:     disp,
		HostVersion:    cfg.HostVersion,
		CompareMode:    cfg.CompareMode(),
		RequestTimeout: cfg.RequestTimeout,
		Publisher:      events.NewMultiPublisher(publishers...),
	})
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("%s - failed to create bridge: %w", logPrefix, err)
	}
	s.bridge = b
	s.status = b
	slog.Info(fmt.Sprintf("%s - Bridge %s mode=%s host=%q outbound=%s", logPrefix, cfg.Scheme, b.Mode(), cfg.HostVersion, poster.Subject()))

	// Step 4: Response listener (legacy hosts never answer)
	s.listener = listener.New(b)
	if b.Mode() == bridge.ModeDeferred {
		if err := s.listener.Start(nc, cfg.Inbound()); err != nil {
			b.Close()
			s.closeResources()
			return nil, err
		}
	} else {
		slog.Warn(fmt.Sprintf("%s - host %q does not post responses; listener not started", logPrefix, cfg.HostVersion))
	}

	// Step 5: Subscribe the request subject
	s.calls = b
	if err := s.startIngress(cfg.Requests()); err != nil {
		s.listener.Stop()
		b.Close()
		s.closeResources()
		return nil, err
	}

	return s, nil
}

// Bridge returns the request correlator.
func (s *Server) Bridge() *bridge.Bridge { return s.bridge }

// Repository returns the request journal, or nil when it is disabled.
func (s *Server) Repository() *journal.Repository { return s.repo }

// Conn returns the host link.
func (s *Server) Conn() *comms.Conn { return s.nc }

// Close stops taking requests, stops the listener, settles pending requests
// with bridge.ErrClosed, waits for their replies and closes the host link and
// database pool. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.closeIngress()
		if s.listener != nil {
			if err := s.listener.Stop(); err != nil {
				slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
			}
		}
		if s.bridge != nil {
			s.bridge.Close()
		}
		s.inflight.Wait()
		if s.stopIngress != nil {
			s.stopIngress()
		}
		s.closeResources()
	})
}

func (s *Server) closeResources() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Run loads config, starts the bridge and the HTTP health server, and blocks
// until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting meet-bridge", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, cfg.HTTPAddr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - meet-bridge is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	s.Close()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status      string `json:"status"`
	Link        string `json:"link"`
	Mode        string `json:"mode"`
	HostVersion string `json:"hostVersion"`
	Pending     int    `json:"pending"`
	// Journal is nil when the journal is disabled.
	Journal   *bool  `json:"journal,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:      "healthy",
		Link:        "unknown",
		Mode:        s.status.Mode().String(),
		HostVersion: s.status.HostVersion(),
		Pending:     s.status.PendingCount(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if s.link != nil {
		status := s.link()
		out.Link = status.String()
		if status != comms.CONNECTED {
			out.Status = "unhealthy"
		}
	}
	if s.dbPing != nil {
		ok := s.dbPing(ctx) == nil
		out.Journal = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/requests", s.handleRequests())
	return mux
}

// handleRequests lists recent journal rows: /requests?limit=20&route=eos/transfer&status=resolved.
func (s *Server) handleRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			http.Error(w, "request journal disabled (set DATABASE_URL)", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		params := journal.ListRequestsParams{Route: q.Get("route"), Status: q.Get("status")}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			params.Limit = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		rows, err := s.journal.ListRequests(ctx, params)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - list requests: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []journal.Request{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}
