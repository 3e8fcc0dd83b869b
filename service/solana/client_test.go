package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(mock *MockRPCClient) *Connection {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewConnection(mock, "http://localhost:8899", "localnet", rpc.CommitmentConfirmed, m, logger)
}

func TestConnection_ID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewConnection(NewMockRPCClient(), "http://a", "devnet", rpc.CommitmentConfirmed, nil, logger)
	b := NewConnection(NewMockRPCClient(), "http://a", "devnet", rpc.CommitmentConfirmed, nil, logger)
	c := NewConnection(NewMockRPCClient(), "http://a", "devnet", rpc.CommitmentFinalized, nil, logger)
	d := NewConnection(NewMockRPCClient(), "http://a", "devnet", "", nil, logger)

	assert.Equal(t, a.ID(), b.ID(), "same url and commitment should share an identity")
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Equal(t, rpc.CommitmentConfirmed, d.Commitment(), "empty commitment defaults to confirmed")
}

func TestConnection_LatestBlockhash(t *testing.T) {
	mock := NewMockRPCClient()
	conn := newTestConnection(mock)

	hash, err := conn.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mock.Blockhash, hash)

	mock.Err = errors.New("connection refused")
	_, err = conn.LatestBlockhash(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnection_AccountData(t *testing.T) {
	mock := NewMockRPCClient()
	conn := newTestConnection(mock)
	address := solana.NewWallet().PublicKey()

	_, err := conn.AccountData(context.Background(), address)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	mock.SetAccount(address, []byte{1, 2, 3})
	data, err := conn.AccountData(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestConnection_ProgramAccounts_FiltersByPrefix(t *testing.T) {
	mock := NewMockRPCClient()
	conn := newTestConnection(mock)

	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	mock.SetAccount(a, []byte{9, 9, 1})
	mock.SetAccount(b, []byte{7, 7, 1})

	accounts, err := conn.ProgramAccounts(context.Background(), solana.SystemProgramID, []byte{9, 9})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, a, accounts[0].Address)

	accounts, err = conn.ProgramAccounts(context.Background(), solana.SystemProgramID, nil)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestConnection_SignatureStatus(t *testing.T) {
	mock := NewMockRPCClient()
	conn := newTestConnection(mock)
	sig := solana.Signature{1}

	status, err := conn.SignatureStatus(context.Background(), sig)
	require.NoError(t, err)
	assert.Nil(t, status)

	mock.SetStatus(sig, &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed})
	status, err = conn.SignatureStatus(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, rpc.ConfirmationStatusConfirmed, status.ConfirmationStatus)
}

func TestRPCURLForNetwork(t *testing.T) {
	url, ok := RPCURLForNetwork("devnet")
	assert.True(t, ok)
	assert.Equal(t, DevnetRPCURL, url)

	_, ok = RPCURLForNetwork("moonnet")
	assert.False(t, ok)
}
