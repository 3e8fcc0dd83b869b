package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing wallet session events to NATS.
type Publisher interface {
	// PublishSessionEvent publishes a single session event to JetStream.
	// The event is published to the subject "sessions.{type}".
	PublishSessionEvent(ctx context.Context, event *SessionEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes session events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for wallet sessions.
	StreamName = "WALLET_SESSIONS"

	// SubjectPrefix prefixes every session event subject.
	SubjectPrefix = "sessions."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + "*"

	// StreamRetention is how long messages are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solanapredict-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// StreamConfig is the JetStream configuration of the session stream. Events
// older than StreamRetention are dropped.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Wallet connect, disconnect and expiry events from SolanaPredict sessions",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}
}

// ensureStream creates the session stream, or brings an existing one in line
// with StreamConfig.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.CreateOrUpdateStream(ctx, StreamConfig())
	if err != nil {
		return fmt.Errorf("failed to create or update stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream info: %w", err)
	}
	p.logger.Info("JetStream stream ready",
		"stream", info.Config.Name,
		"subjects", info.Config.Subjects,
		"messages", info.State.Msgs,
	)
	return nil
}

// PublishSessionEvent publishes a single session event.
func (p *JetStreamPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	status := "success"
	done := metrics.Timer(time.Now(), func(duration float64) {
		if p.metrics != nil {
			p.metrics.RecordNATSPublish(subject, status, duration)
		}
	})
	_, err = p.js.Publish(ctx, subject, data)
	if err != nil {
		status = "error"
	}
	done()
	if err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session event",
		"subject", subject,
		"session_id", event.SessionID,
		"public_key", event.PublicKey,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
