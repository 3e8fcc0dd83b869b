package nats

import (
	"time"
)

// SessionEventType is the kind of wallet session change.
type SessionEventType string

const (
	SessionConnected    SessionEventType = "connected"
	SessionDisconnected SessionEventType = "disconnected"
	SessionExpired      SessionEventType = "expired"
)

// SessionEvent is published whenever a browser session connects or drops a
// wallet. It goes to the subject "sessions.{type}" in JetStream.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"session_id"`
	PublicKey string           `json:"public_key"`

	// Program the session's handle was bound to; empty when no handle was built.
	ProgramID string `json:"program_id,omitempty"`
	Network   string `json:"network,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Subject returns the JetStream subject for the event.
func (e *SessionEvent) Subject() string {
	return SubjectPrefix + string(e.Type)
}

// NewSessionEvent stamps an event with the current UTC time.
func NewSessionEvent(eventType SessionEventType, sessionID, publicKey string) *SessionEvent {
	return &SessionEvent{
		Type:       eventType,
		SessionID:  sessionID,
		PublicKey:  publicKey,
		OccurredAt: time.Now().UTC(),
	}
}
