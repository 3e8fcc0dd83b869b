package program

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultCommitment is the confirmation level every provider signs and
// confirms at.
const DefaultCommitment = rpc.CommitmentConfirmed

// DefaultConfirmPollInterval is how often Confirm polls signature status.
const DefaultConfirmPollInterval = 500 * time.Millisecond

// Provider is the request signer: a connection bound to a wallet identity at a
// fixed commitment. Providers are immutable; a Binder replaces them when either
// input changes.
type Provider struct {
	conn         *solana.Connection
	wallet       wallet.Wallet
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewProvider creates a request signer for w over conn.
func NewProvider(conn *solana.Connection, w wallet.Wallet, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Provider {
	if commitment == "" {
		commitment = DefaultCommitment
	}
	return &Provider{
		conn:         conn,
		wallet:       w,
		commitment:   commitment,
		pollInterval: DefaultConfirmPollInterval,
		metrics:      m,
		logger:       logger,
	}
}

// Connection returns the connection this provider sends through.
func (p *Provider) Connection() *solana.Connection { return p.conn }

// Wallet returns the signing identity.
func (p *Provider) Wallet() wallet.Wallet { return p.wallet }

// PublicKey returns the signer's public key (also the fee payer).
func (p *Provider) PublicKey() solanago.PublicKey { return p.wallet.PublicKey() }

// Commitment returns the confirmation level.
func (p *Provider) Commitment() rpc.CommitmentType { return p.commitment }

// BuildTransaction assembles an unsigned transaction paid for by the provider's
// wallet using a fresh blockhash.
func (p *Provider) BuildTransaction(ctx context.Context, instructions ...solanago.Instruction) (*solanago.Transaction, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("at least one instruction is required")
	}

	blockhash, err := p.conn.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solanago.NewTransaction(instructions, blockhash, solanago.TransactionPayer(p.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}

// Send builds, signs and submits a transaction. It returns once the cluster
// accepted it; use Confirm to wait for the provider's commitment.
func (p *Provider) Send(ctx context.Context, instructions ...solanago.Instruction) (solanago.Signature, error) {
	tx, err := p.BuildTransaction(ctx, instructions...)
	if err != nil {
		return solanago.Signature{}, err
	}

	if err := p.wallet.SignTransaction(ctx, tx); err != nil {
		return solanago.Signature{}, err
	}

	sig, err := p.conn.SendTransaction(ctx, tx, p.commitment)
	if p.metrics != nil {
		p.metrics.RecordTransactionSent(err)
	}
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.logger.InfoContext(ctx, "transaction sent",
		"signature", sig.String(),
		"signer", p.PublicKey().String(),
		"network", p.conn.Network(),
	)
	return sig, nil
}

// Confirm polls the signature status until it reaches the provider's
// commitment, the transaction fails, or ctx is done.
func (p *Provider) Confirm(ctx context.Context, sig solanago.Signature) (*rpc.SignatureStatusesResult, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		status, err := p.conn.SignatureStatus(ctx, sig)
		if err != nil {
			return nil, err
		}
		if status != nil {
			if status.Err != nil {
				return status, &TransactionError{Signature: sig, Err: status.Err}
			}
			if commitmentReached(status.ConfirmationStatus, p.commitment) {
				p.logger.DebugContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"status", status.ConfirmationStatus,
				)
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SendAndConfirm sends instructions and waits for the provider's commitment.
func (p *Provider) SendAndConfirm(ctx context.Context, instructions ...solanago.Instruction) (solanago.Signature, error) {
	sig, err := p.Send(ctx, instructions...)
	if err != nil {
		return solanago.Signature{}, err
	}
	if _, err := p.Confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// TransactionError is a transaction that landed but failed on chain.
type TransactionError struct {
	Signature solanago.Signature
	Err       interface{}
}

func (e *TransactionError) Error() string {
	if _, code, ok := solana.ParseInstructionError(e.Err); ok {
		return fmt.Sprintf("transaction %s failed: custom program error: 0x%x", e.Signature, code)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

func commitmentReached(got rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[string]int{
		string(rpc.ConfirmationStatusProcessed): 1,
		string(rpc.ConfirmationStatusConfirmed): 2,
		string(rpc.ConfirmationStatusFinalized): 3,
	}
	return rank[string(got)] >= rank[string(want)] && rank[string(got)] > 0
}
