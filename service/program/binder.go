package program

import (
	"log/slog"
	"sync"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
)

// Binder lazily builds a Provider and Program for a (connection, wallet) pair
// and keeps them until either input changes. A Binder holds one binding at a
// time; give each session its own.
type Binder struct {
	idl        *idl.IDL
	commitment rpc.CommitmentType
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	connID   string
	walletID string
	provider *Provider
	program  *Program
}

// NewBinder creates a Binder that builds handles for doc at commitment.
func NewBinder(doc *idl.IDL, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Binder {
	if commitment == "" {
		commitment = DefaultCommitment
	}
	return &Binder{
		idl:        doc,
		commitment: commitment,
		metrics:    m,
		logger:     logger,
	}
}

// Bind returns the handles for conn and w. Without a wallet (or a connection)
// both are nil and any previous binding is discarded. Repeated calls with the
// same connection ID and wallet key return the same instances.
func (b *Binder) Bind(conn *solana.Connection, w wallet.Wallet) (*Provider, *Program) {
	walletID := bindingKey(w)

	b.mu.Lock()
	defer b.mu.Unlock()

	if conn == nil || walletID == "" {
		b.reset()
		b.record("not_ready", "no_wallet")
		return nil, nil
	}
	connID := conn.ID()

	if b.program != nil && b.connID == connID && b.walletID == walletID {
		b.record("hit", "")
		return b.provider, b.program
	}

	reason := "initial"
	switch {
	case b.program == nil:
	case b.connID != connID:
		reason = "connection_changed"
	default:
		reason = "wallet_changed"
	}

	b.provider = NewProvider(conn, w, b.commitment, b.metrics, b.logger)
	b.program = NewProgram(b.idl, b.provider, b.metrics, b.logger)
	b.connID = connID
	b.walletID = walletID

	b.logger.Debug("program client bound",
		"reason", reason,
		"program_id", b.program.ProgramID().String(),
		"signer", wallet.ID(w),
		"connection", connID,
	)
	b.record("built", reason)
	return b.provider, b.program
}

// Reset drops the current binding.
func (b *Binder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// bindingKey is the wallet identity plus whether it can sign, so a keypair and
// a read-only wallet for the same key never share a provider.
func bindingKey(w wallet.Wallet) string {
	id := wallet.ID(w)
	if id == "" {
		return ""
	}
	if _, readOnly := w.(*wallet.ReadOnlyWallet); readOnly {
		return id + "#readonly"
	}
	return id
}

func (b *Binder) reset() {
	b.provider = nil
	b.program = nil
	b.connID = ""
	b.walletID = ""
}

// Status describes whether a program client handle is available.
type Status struct {
	Ready      bool   `json:"ready"`
	ProgramID  string `json:"program_id,omitempty"`
	Signer     string `json:"signer,omitempty"`
	Commitment string `json:"commitment,omitempty"`
	Network    string `json:"network,omitempty"`
}

// Status binds conn and w and reports the result.
func (b *Binder) Status(conn *solana.Connection, w wallet.Wallet) Status {
	_, prog := b.Bind(conn, w)
	if prog == nil {
		return Status{Ready: false}
	}
	return Status{
		Ready:      true,
		ProgramID:  prog.ProgramID().String(),
		Signer:     prog.Provider().PublicKey().String(),
		Commitment: string(prog.Provider().Commitment()),
		Network:    conn.Network(),
	}
}

func (b *Binder) record(outcome, reason string) {
	if b.metrics != nil {
		b.metrics.RecordProgramBind(outcome, reason)
	}
}
