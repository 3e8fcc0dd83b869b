package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/nats"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the browser session ID.
const SessionCookieName = "sp_session"

// Session is one browser's wallet state. It owns the wallet identity the
// browser connected and the Binder that turns it into a program client.
type Session struct {
	ID string

	mu       sync.Mutex
	wallet   wallet.Wallet
	binder   *program.Binder
	lastSeen time.Time
}

// Wallet returns the connected wallet, or nil.
func (s *Session) Wallet() wallet.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// Bind returns the session's program client for conn, or nils when no
// wallet is connected.
func (s *Session) Bind(conn *solana.Connection) (*program.Provider, *program.Program) {
	return s.binder.Bind(conn, s.Wallet())
}

// Status reports whether the session has a program client for conn.
func (s *Session) Status(conn *solana.Connection) program.Status {
	return s.binder.Status(conn, s.Wallet())
}

// SessionStore keeps sessions in memory. Nothing about a session survives a
// restart; browsers reconnect their wallet.
type SessionStore struct {
	idl        *idl.IDL
	commitment rpc.CommitmentType
	ttl        time.Duration
	publisher  nats.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store. publisher may be nil, in which
// case session events are only logged.
func NewSessionStore(doc *idl.IDL, commitment rpc.CommitmentType, ttl time.Duration, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		idl:        doc,
		commitment: commitment,
		ttl:        ttl,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Create starts a new session.
func (st *SessionStore) Create() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		binder:   program.NewBinder(st.idl, st.commitment, st.metrics, st.logger),
		lastSeen: st.now(),
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	return sess
}

// Get returns a live session and refreshes its expiry.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, false
	}

	now := st.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if st.ttl > 0 && now.Sub(sess.lastSeen) > st.ttl {
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Len returns the number of stored sessions, including expired ones that have
// not been swept yet.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// FromRequest returns the session named by the request cookie. When there is
// none and create is set, a new session is started and its cookie written.
func (st *SessionStore) FromRequest(w http.ResponseWriter, r *http.Request, create bool) *Session {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sess, ok := st.Get(cookie.Value); ok {
			return sess
		}
	}
	if !create {
		return nil
	}

	sess := st.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(st.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Connect sets the session's wallet. Connecting the key that is already
// connected is a no-op; connecting a different key replaces it.
func (st *SessionStore) Connect(ctx context.Context, sess *Session, w wallet.Wallet, conn *solana.Connection) program.Status {
	newID := wallet.ID(w)

	sess.mu.Lock()
	oldID := wallet.ID(sess.wallet)
	sess.wallet = w
	sess.mu.Unlock()

	status := sess.Status(conn)
	if oldID == newID {
		return status
	}

	if oldID != "" {
		st.emit(ctx, nats.SessionDisconnected, sess.ID, oldID, program.Status{})
	}
	st.emit(ctx, nats.SessionConnected, sess.ID, newID, status)
	return status
}

// Disconnect clears the session's wallet.
func (st *SessionStore) Disconnect(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	oldID := wallet.ID(sess.wallet)
	sess.wallet = nil
	sess.mu.Unlock()
	sess.binder.Reset()

	if oldID != "" {
		st.emit(ctx, nats.SessionDisconnected, sess.ID, oldID, program.Status{})
	}
}

// Sweep removes expired sessions and returns how many were removed.
func (st *SessionStore) Sweep(ctx context.Context) int {
	now := st.now()
	var expired []*Session

	st.mu.Lock()
	for id, sess := range st.sessions {
		sess.mu.Lock()
		stale := st.ttl > 0 && now.Sub(sess.lastSeen) > st.ttl
		sess.mu.Unlock()
		if stale {
			delete(st.sessions, id)
			expired = append(expired, sess)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		sess.binder.Reset()
		if key := wallet.ID(sess.Wallet()); key != "" {
			st.emit(ctx, nats.SessionExpired, sess.ID, key, program.Status{})
		}
	}
	if len(expired) > 0 {
		st.logger.InfoContext(ctx, "expired sessions swept", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep(ctx)
		}
	}
}

func (st *SessionStore) emit(ctx context.Context, eventType nats.SessionEventType, sessionID, publicKey string, status program.Status) {
	if st.metrics != nil {
		st.metrics.RecordSessionEvent(string(eventType))
	}

	st.logger.InfoContext(ctx, "wallet session event",
		"type", eventType,
		"session_id", sessionID,
		"public_key", publicKey,
	)

	if st.publisher == nil {
		return
	}
	event := nats.NewSessionEvent(eventType, sessionID, publicKey)
	event.ProgramID = status.ProgramID
	event.Network = status.Network
	if err := st.publisher.PublishSessionEvent(ctx, event); err != nil {
		st.logger.ErrorContext(ctx, "failed to publish session event",
			"type", eventType,
			"session_id", sessionID,
			"error", err,
		)
	}
}
