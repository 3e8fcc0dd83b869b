package nats

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEvent_Subject(t *testing.T) {
	assert.Equal(t, "sessions.connected", NewSessionEvent(SessionConnected, "s1", "pk").Subject())
	assert.Equal(t, "sessions.disconnected", NewSessionEvent(SessionDisconnected, "s1", "pk").Subject())
	assert.Equal(t, "sessions.*", StreamSubjects)
}

func TestSessionEvent_JSON(t *testing.T) {
	event := &SessionEvent{
		Type:       SessionConnected,
		SessionID:  "abc",
		PublicKey:  "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "connected",
		"session_id": "abc",
		"public_key": "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
		"occurred_at": "2025-01-02T03:04:05Z"
	}`, string(data))
}

func TestStreamConfig(t *testing.T) {
	cfg := StreamConfig()
	assert.Equal(t, "WALLET_SESSIONS", cfg.Name)
	assert.Equal(t, []string{"sessions.*"}, cfg.Subjects)
	assert.Equal(t, 7*24*time.Hour, cfg.MaxAge)
	assert.Equal(t, jetstream.DiscardOld, cfg.Discard)

	for _, eventType := range []SessionEventType{SessionConnected, SessionDisconnected, SessionExpired} {
		subject := NewSessionEvent(eventType, "s", "pk").Subject()
		assert.True(t, strings.HasPrefix(subject, SubjectPrefix), subject)
	}
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	mock := NewMockPublisher()

	require.NoError(t, mock.PublishSessionEvent(ctx, NewSessionEvent(SessionConnected, "s1", "a")))
	require.NoError(t, mock.PublishSessionEvent(ctx, NewSessionEvent(SessionDisconnected, "s1", "a")))
	require.NoError(t, mock.PublishSessionEvent(ctx, NewSessionEvent(SessionConnected, "s2", "b")))

	assert.Len(t, mock.Events(), 3)
	assert.Len(t, mock.EventsOfType(SessionConnected), 2)
	assert.Len(t, mock.EventsForKey("a"), 2)

	mock.FailWith(errors.New("nats down"))
	assert.Error(t, mock.PublishSessionEvent(ctx, NewSessionEvent(SessionConnected, "s3", "c")))
	assert.Len(t, mock.Events(), 3)
	assert.Equal(t, 4, mock.Attempts())
	mock.FailWith(nil)

	require.NoError(t, mock.Close())
	assert.True(t, mock.Closed())
	assert.ErrorIs(t, mock.PublishSessionEvent(ctx, NewSessionEvent(SessionExpired, "s1", "a")), nats.ErrConnectionClosed)

	mock.Reset()
	assert.Empty(t, mock.Events())
	assert.Zero(t, mock.Attempts())
	assert.False(t, mock.Closed())
}
