package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetAccountInfoWithOpts(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetAccountInfoOpts,
	) (*rpc.GetAccountInfoResult, error)

	GetProgramAccountsWithOpts(
		ctx context.Context,
		programID solana.PublicKey,
		opts *rpc.GetProgramAccountsOpts,
	) (rpc.GetProgramAccountsResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		transaction *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

// Connection is a network connection to a Solana cluster at a fixed commitment.
// Its ID identifies it for handle caching: two connections with the same RPC URL
// and commitment are interchangeable.
type Connection struct {
	rpc        RPCClient
	url        string
	network    string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet")
	commitment rpc.CommitmentType
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewConnection creates a new Connection.
// If metrics is nil, no metrics will be recorded.
func NewConnection(rpcClient RPCClient, url, network string, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Connection {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Connection{
		rpc:        rpcClient,
		url:        url,
		network:    network,
		commitment: commitment,
		metrics:    m,
		logger:     logger,
	}
}

// ID returns the identity of the connection used as a cache key component.
func (c *Connection) ID() string {
	return c.url + "#" + string(c.commitment)
}

// URL returns the RPC URL.
func (c *Connection) URL() string { return c.url }

// Network returns the network label.
func (c *Connection) Network() string { return c.network }

// Commitment returns the commitment used for reads.
func (c *Connection) Commitment() rpc.CommitmentType { return c.commitment }

// LatestBlockhash fetches a recent blockhash for transaction construction.
func (c *Connection) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.record(ctx, "GetLatestBlockhash", start, err)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// AccountData fetches the raw data of an account.
// Returns ErrAccountNotFound if the account does not exist.
func (c *Connection) AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.record(ctx, "GetAccountInfo", start, nil)
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	c.record(ctx, "GetAccountInfo", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return out.Value.Data.GetBinary(), nil
}

// KeyedAccount is an account address with its raw data.
type KeyedAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// ProgramAccounts lists accounts owned by programID whose data starts with prefix.
func (c *Connection) ProgramAccounts(ctx context.Context, programID solana.PublicKey, prefix []byte) ([]KeyedAccount, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	}
	if len(prefix) > 0 {
		opts.Filters = []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(prefix)}},
		}
	}

	start := time.Now()
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, programID, opts)
	c.record(ctx, "GetProgramAccounts", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}

	accounts := make([]KeyedAccount, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil || keyed.Account.Data == nil {
			continue
		}
		accounts = append(accounts, KeyedAccount{
			Address: keyed.Pubkey,
			Data:    keyed.Account.Data.GetBinary(),
		})
	}

	c.logger.DebugContext(ctx, "fetched program accounts",
		"program", programID.String(),
		"count", len(accounts),
	)
	return accounts, nil
}

// SendTransaction submits a signed transaction, simulating it first at the
// given preflight commitment (the connection's commitment when empty).
func (c *Connection) SendTransaction(ctx context.Context, tx *solana.Transaction, preflight rpc.CommitmentType) (solana.Signature, error) {
	if preflight == "" {
		preflight = c.commitment
	}
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: preflight,
	})
	c.record(ctx, "SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// SignatureStatus returns the status of a signature, or nil if the cluster has
// not seen it yet.
func (c *Connection) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record(ctx, "GetSignatureStatuses", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

func (c *Connection) record(ctx context.Context, method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		c.logger.WarnContext(ctx, "solana RPC call failed",
			"method", method,
			"network", c.network,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.network, time.Since(start).Seconds())
	}
}
