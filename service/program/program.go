package program

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// Program is a client handle for one on-chain program: its IDL, its address,
// and the provider that signs requests to it.
type Program struct {
	idl       *idl.IDL
	programID solanago.PublicKey
	provider  *Provider
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewProgram binds doc to provider. The program address comes from the IDL.
func NewProgram(doc *idl.IDL, provider *Provider, m *metrics.Metrics, logger *slog.Logger) *Program {
	return &Program{
		idl:       doc,
		programID: doc.ProgramID(),
		provider:  provider,
		now:       time.Now,
		metrics:   m,
		logger:    logger,
	}
}

// ProgramID returns the program address.
func (p *Program) ProgramID() solanago.PublicKey { return p.programID }

// IDL returns the interface description the handle was built from.
func (p *Program) IDL() *idl.IDL { return p.idl }

// Provider returns the request signer.
func (p *Program) Provider() *Provider { return p.provider }

// Instruction builds an instruction from its IDL description. accounts maps IDL
// account names to addresses; systemProgram is filled in when omitted. args are
// Borsh-encoded in order after the instruction discriminator.
func (p *Program) Instruction(name string, accounts map[string]solanago.PublicKey, args ...interface{}) (solanago.Instruction, error) {
	ix, err := p.instruction(name, accounts, args...)
	if p.metrics != nil {
		p.metrics.RecordInstructionBuilt(idl.SnakeCase(name), err)
	}
	return ix, err
}

func (p *Program) instruction(name string, accounts map[string]solanago.PublicKey, args ...interface{}) (solanago.Instruction, error) {
	def, err := p.idl.Instruction(name)
	if err != nil {
		return nil, err
	}
	if len(args) != len(def.Args) {
		return nil, fmt.Errorf("%s: expected %d args, got %d", def.Name, len(def.Args), len(args))
	}

	metas := make(solanago.AccountMetaSlice, 0, len(def.Accounts))
	for _, item := range def.Accounts {
		key, ok := accounts[item.Name]
		if !ok && item.Name == "systemProgram" {
			key, ok = solanago.SystemProgramID, true
		}
		if !ok {
			return nil, fmt.Errorf("%s: missing account %q", def.Name, item.Name)
		}
		metas = append(metas, solanago.NewAccountMeta(key, item.IsMut, item.IsSigner))
	}

	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)
	disc := idl.InstructionDiscriminator(def.Name)
	if err := encoder.WriteBytes(disc.Bytes(), false); err != nil {
		return nil, err
	}
	for i, arg := range args {
		if err := encoder.Encode(arg); err != nil {
			return nil, fmt.Errorf("%s: failed to encode arg %q: %w", def.Name, def.Args[i].Name, err)
		}
	}

	return solanago.NewInstruction(p.programID, metas, buf.Bytes()), nil
}

// FetchMarket reads and decodes a market account.
func (p *Program) FetchMarket(ctx context.Context, address solanago.PublicKey) (*Market, error) {
	data, err := p.provider.Connection().AccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeMarket(data)
}

// FetchBet reads and decodes a bet account.
func (p *Program) FetchBet(ctx context.Context, address solanago.PublicKey) (*Bet, error) {
	data, err := p.provider.Connection().AccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeBet(data)
}

// FetchMyBet reads the provider wallet's bet on market.
func (p *Program) FetchMyBet(ctx context.Context, market solanago.PublicKey) (solanago.PublicKey, *Bet, error) {
	addr, _, err := BetAddress(p.programID, market, p.provider.PublicKey())
	if err != nil {
		return solanago.PublicKey{}, nil, err
	}
	bet, err := p.FetchBet(ctx, addr)
	return addr, bet, err
}

// MarketAccount is a decoded market with its address.
type MarketAccount struct {
	Address solanago.PublicKey `json:"address"`
	Market  *Market            `json:"market"`
}

// ListMarkets returns every market owned by the program. Accounts that fail to
// decode are logged and skipped.
func (p *Program) ListMarkets(ctx context.Context) ([]MarketAccount, error) {
	accounts, err := p.provider.Connection().ProgramAccounts(ctx, p.programID, MarketDiscriminator.Bytes())
	if err != nil {
		return nil, err
	}

	markets := make([]MarketAccount, 0, len(accounts))
	for _, acct := range accounts {
		m, err := DecodeMarket(acct.Data)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping undecodable market account",
				"address", acct.Address.String(),
				"error", err,
			)
			continue
		}
		markets = append(markets, MarketAccount{Address: acct.Address, Market: m})
	}
	return markets, nil
}

// Send signs and submits instructions through the provider and waits for
// confirmation. Custom program errors are decoded through the IDL.
func (p *Program) Send(ctx context.Context, instructions ...solanago.Instruction) (solanago.Signature, error) {
	sig, err := p.provider.SendAndConfirm(ctx, instructions...)
	return sig, decodeProgramError(p.idl, err)
}
