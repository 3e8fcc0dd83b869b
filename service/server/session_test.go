package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/nats"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, pub nats.Publisher) (*SessionStore, *time.Time) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewSessionStore(idl.MustDefault(), rpc.CommitmentConfirmed, time.Hour, pub, nil, logger)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestSessionStore_Expiry(t *testing.T) {
	pub := nats.NewMockPublisher()
	store, now := newTestStore(t, pub)
	conn := solana.NewConnection(solana.NewMockRPCClient(), "http://localhost:8899", "localnet", "", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	connected := store.Create()
	store.Connect(ctx, connected, wallet.NewReadOnlyWallet(solanago.NewWallet().PublicKey()), conn)
	idle := store.Create()

	*now = now.Add(30 * time.Minute)
	_, ok := store.Get(connected.ID)
	assert.True(t, ok, "access refreshes the session")

	*now = now.Add(45 * time.Minute)
	_, ok = store.Get(idle.ID)
	assert.False(t, ok, "idle session is past its ttl")

	assert.Equal(t, 1, store.Sweep(ctx))
	assert.Equal(t, 1, store.Len())

	*now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, store.Sweep(ctx))
	assert.Equal(t, 0, store.Len())

	expired := pub.EventsOfType(nats.SessionExpired)
	require.Len(t, expired, 1, "only sessions with a wallet emit an expiry event")
	assert.Equal(t, connected.ID, expired[0].SessionID)
}

func TestSessionStore_PublishFailureDoesNotBlockConnect(t *testing.T) {
	pub := nats.NewMockPublisher()
	pub.FailWith(errors.New("nats down"))
	store, _ := newTestStore(t, pub)
	conn := solana.NewConnection(solana.NewMockRPCClient(), "http://localhost:8899", "localnet", "", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sess := store.Create()
	status := store.Connect(context.Background(), sess, wallet.NewReadOnlyWallet(solanago.NewWallet().PublicKey()), conn)
	assert.True(t, status.Ready)
	assert.Equal(t, 1, pub.Attempts(), "the connect event was attempted")
	assert.Empty(t, pub.Events())
}

func TestSessionStore_NilPublisher(t *testing.T) {
	store, _ := newTestStore(t, nil)
	conn := solana.NewConnection(solana.NewMockRPCClient(), "http://localhost:8899", "localnet", "", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	sess := store.Create()
	store.Connect(ctx, sess, wallet.NewReadOnlyWallet(solanago.NewWallet().PublicKey()), conn)
	store.Disconnect(ctx, sess)

	_, prog := sess.Bind(conn)
	assert.Nil(t, prog)
}
