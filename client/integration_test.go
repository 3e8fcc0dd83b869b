package client_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/solanapredict/client"
	"github.com/brojonat/solanapredict/service/config"
	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/nats"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/server"
	"github.com/brojonat/solanapredict/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientServerIntegration runs the client against a real server backed by
// an in-memory RPC mock.
func TestClientServerIntegration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	doc := idl.MustDefault()
	mock := solana.NewMockRPCClient()
	conn := solana.NewConnection(mock, "http://localhost:8899", "localnet", rpc.CommitmentConfirmed, nil, logger)
	pub := nats.NewMockPublisher()
	sessions := server.NewSessionStore(doc, rpc.CommitmentConfirmed, time.Hour, pub, nil, logger)

	srv := server.New(":0", &config.Config{SessionTTL: time.Hour}, doc, conn, sessions, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	market := &program.Market{
		Creator:   solanago.NewWallet().PublicKey(),
		Question:  "Will it rain?",
		EndTime:   time.Now().Add(time.Hour).Unix(),
		YesPool:   7,
		CreatedAt: time.Now().Unix(),
	}
	data, err := program.EncodeAccount(market)
	require.NoError(t, err)
	marketAddr := solanago.NewWallet().PublicKey()
	mock.SetAccount(marketAddr, data)

	ctx := context.Background()
	c := client.NewClient(ts.URL, nil, nil)

	require.NoError(t, c.Health(ctx))

	status, err := c.ProgramStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Ready)

	_, err = c.ListMarkets(ctx)
	assert.ErrorIs(t, err, client.ErrNotConnected)

	key := solanago.NewWallet().PublicKey().String()
	status, err = c.Connect(ctx, key)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.Equal(t, doc.ProgramID().String(), status.ProgramID)
	assert.Equal(t, key, status.Signer)

	status, err = c.ProgramStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready, "session cookie carries the wallet across requests")

	markets, err := c.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "Will it rain?", markets[0].Question)

	got, err := c.GetMarket(ctx, marketAddr.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.TotalPool)
	assert.Nil(t, got.MyBet)

	tx, err := c.BuildTransaction(ctx, "place_bet", map[string]interface{}{
		"market": marketAddr.String(),
		"amount": 5,
		"option": "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, key, tx.Signer)
	assert.NotEmpty(t, tx.Transaction)

	require.NoError(t, c.Disconnect(ctx))
	status, err = c.ProgramStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Ready)

	assert.Len(t, pub.Events(), 2)
}
