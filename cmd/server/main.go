package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solanapredict/service/config"
	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/nats"
	"github.com/brojonat/solanapredict/service/server"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/gagliardetto/solana-go/rpc"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.SolanaNetwork,
	)

	// A bad interface description is a startup error, like bad config.
	doc, err := loadIDL(cfg.IDLPath)
	if err != nil {
		logger.Error("failed to load program IDL", "path", cfg.IDLPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded program IDL",
		"program", doc.Name,
		"program_id", doc.ProgramID().String(),
		"instructions", doc.InstructionNames(),
	)

	m := metrics.NewMetrics(nil)

	// Note: For premium RPC endpoints, include API key in the URL
	commitment := rpc.CommitmentType(cfg.SolanaCommitment)
	conn := solana.NewConnection(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.SolanaRPCURL, cfg.SolanaNetwork, commitment, m, logger)
	logger.Info("initialized solana connection", "connection", conn.ID())

	// Session events are optional
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("NATS_URL not set, session events will not be published")
	}

	sessions := server.NewSessionStore(doc, commitment, cfg.SessionTTL, publisher, m, logger)

	httpServer := server.New(cfg.ServerAddr, cfg, doc, conn, sessions, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// loadIDL reads the IDL from path, or returns the embedded one when path is empty.
func loadIDL(path string) (*idl.IDL, error) {
	if path == "" {
		return idl.Default()
	}
	return idl.Load(path)
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
