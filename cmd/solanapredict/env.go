package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	lamportsPerSOL        = 1_000_000_000
)

var errNoWallet = errors.New("no wallet: set --keypair (or SOLANA_KEYPAIR), or --wallet for read-only commands")

// env is everything a command needs to reach the program.
type env struct {
	idl    *idl.IDL
	conn   *solana.Connection
	wallet wallet.Wallet
	binder *program.Binder
	logger *slog.Logger
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
}

func loadIDL(c *cli.Context) (*idl.IDL, error) {
	if path := c.String("idl"); path != "" {
		return idl.Load(path)
	}
	return idl.Default()
}

// loadWallet returns the keypair wallet when --keypair is set, a read-only
// wallet when --wallet is set, and nil otherwise.
func loadWallet(c *cli.Context) (wallet.Wallet, error) {
	if path := c.String("keypair"); path != "" {
		return wallet.LoadKeypairFile(path)
	}
	if key := c.String("wallet"); key != "" {
		return wallet.ParseReadOnlyWallet(key)
	}
	return nil, nil
}

func newEnv(c *cli.Context) (*env, error) {
	logger := newLogger()

	doc, err := loadIDL(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load IDL: %w", err)
	}

	w, err := loadWallet(c)
	if err != nil {
		return nil, err
	}

	rpcURL := c.String("rpc-url")
	if rpcURL == "" {
		var ok bool
		if rpcURL, ok = solana.RPCURLForNetwork(c.String("network")); !ok {
			return nil, fmt.Errorf("unknown network %q: set --rpc-url", c.String("network"))
		}
	}
	commitment := rpc.CommitmentType(c.String("commitment"))
	conn := solana.NewConnection(solana.NewRPCClient(rpcURL), rpcURL, c.String("network"), commitment, nil, logger)

	return &env{
		idl:    doc,
		conn:   conn,
		wallet: w,
		binder: program.NewBinder(doc, commitment, nil, logger),
		logger: logger,
	}, nil
}

// program returns the bound program client, or errNoWallet.
func (e *env) program() (*program.Program, error) {
	_, prog := e.binder.Bind(e.conn, e.wallet)
	if prog == nil {
		return nil, errNoWallet
	}
	return prog, nil
}

// signer is like program but also requires a wallet that can sign.
func (e *env) signer() (*program.Program, error) {
	if _, ok := e.wallet.(*wallet.KeypairWallet); !ok {
		return nil, fmt.Errorf("this command signs a transaction: %w", errNoWallet)
	}
	return e.program()
}

func parseAddress(name, value string) (solanago.PublicKey, error) {
	if value == "" {
		return solanago.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solanago.PublicKeyFromBase58(value)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return key, nil
}

// parseEndTime accepts RFC 3339 timestamps or a duration from now (e.g. "72h").
func parseEndTime(value string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --end %q: want RFC 3339 time or duration", value)
	}
	return now.Add(d), nil
}

// lamports converts a positive, finite SOL amount to lamports.
func lamports(sol float64) (uint64, error) {
	if math.IsNaN(sol) || math.IsInf(sol, 0) || sol <= 0 {
		return 0, fmt.Errorf("--amount must be greater than zero, got %v", sol)
	}
	l := math.Round(sol * lamportsPerSOL)
	if l < 1 {
		return 0, fmt.Errorf("--amount %v is less than one lamport", sol)
	}
	if l >= math.MaxUint64 {
		return 0, fmt.Errorf("--amount %v is too large", sol)
	}
	return uint64(l), nil
}

func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%.9g SOL", float64(lamports)/lamportsPerSOL)
}
