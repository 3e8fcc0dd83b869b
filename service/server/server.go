package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solanapredict/service/config"
	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sessionSweepInterval is how often expired sessions are dropped.
const sessionSweepInterval = time.Minute

// Server represents the HTTP server for the SolanaPredict front end.
type Server struct {
	addr     string
	cfg      *config.Config
	idl      *idl.IDL
	conn     *solana.Connection
	sessions *SessionStore
	renderer *TemplateRenderer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new HTTP server with the given dependencies.
// The connection is shared by every session; each session binds its own wallet to it.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, doc *idl.IDL, conn *solana.Connection, sessions *SessionStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		idl:      doc,
		conn:     conn,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session routes
	mux.Handle("POST /api/v1/session", handleConnectSession(s.sessions, s.conn, s.logger))
	mux.Handle("DELETE /api/v1/session", handleDisconnectSession(s.sessions, s.logger))

	// Program routes
	mux.Handle("GET /api/v1/program", handleProgramStatus(s.sessions, s.conn))
	mux.Handle("GET /api/v1/markets", handleListMarkets(s.sessions, s.conn, s.logger))
	mux.Handle("GET /api/v1/markets/{address}", handleGetMarket(s.sessions, s.conn, s.logger))
	mux.Handle("POST /api/v1/transactions/{instruction}", handleBuildTransaction(s.sessions, s.conn, s.logger))

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		mux.Handle("GET /{$}", handleLandingPage(s.renderer, s.sessions, s.conn, s.idl))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(metrics.HTTPMetricsMiddleware(s.metrics)(mux))
}

// Start starts the HTTP server and the session sweeper.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.sessions.Run(ctx, sessionSweepInterval)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		"addr", s.addr,
		"program_id", s.idl.ProgramID().String(),
		"network", s.conn.Network(),
		"session_ttl", s.cfg.SessionTTL.String(),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.cancel != nil {
		s.cancel()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
