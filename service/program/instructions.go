package program

import (
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// Limits enforced by the on-chain program.
const (
	MaxQuestionLength    = 200
	MaxDescriptionLength = 500
)

// CreateMarketArgs are the inputs to create_market.
type CreateMarketArgs struct {
	Question    string
	Description string
	EndTime     time.Time
}

// CreateMarket builds create_market for the provider's wallet as creator and
// returns the derived market address.
func (p *Program) CreateMarket(args CreateMarketArgs) (solanago.Instruction, solanago.PublicKey, error) {
	if len(args.Question) > MaxQuestionLength {
		return nil, solanago.PublicKey{}, fmt.Errorf("%w: %d bytes, maximum is %d", ErrQuestionTooLong, len(args.Question), MaxQuestionLength)
	}
	if len(args.Description) > MaxDescriptionLength {
		return nil, solanago.PublicKey{}, fmt.Errorf("%w: %d bytes, maximum is %d", ErrDescriptionTooLong, len(args.Description), MaxDescriptionLength)
	}
	if !args.EndTime.After(p.now()) {
		return nil, solanago.PublicKey{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidEndTime, args.EndTime.UTC().Format(time.RFC3339))
	}

	creator := p.provider.PublicKey()
	market, _, err := MarketAddress(p.programID, creator, args.Question)
	if err != nil {
		return nil, solanago.PublicKey{}, err
	}

	ix, err := p.Instruction("createMarket", map[string]solanago.PublicKey{
		"market":  market,
		"creator": creator,
	}, args.Question, args.Description, args.EndTime.Unix())
	if err != nil {
		return nil, solanago.PublicKey{}, err
	}
	return ix, market, nil
}

// PlaceBet builds place_bet for the provider's wallet and returns the derived
// bet address.
func (p *Program) PlaceBet(market solanago.PublicKey, amount uint64, option BetOption) (solanago.Instruction, solanago.PublicKey, error) {
	if amount == 0 {
		return nil, solanago.PublicKey{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if option > BetNo {
		return nil, solanago.PublicKey{}, fmt.Errorf("%w: %d", ErrInvalidBetOption, uint8(option))
	}

	user := p.provider.PublicKey()
	bet, _, err := BetAddress(p.programID, market, user)
	if err != nil {
		return nil, solanago.PublicKey{}, err
	}

	ix, err := p.Instruction("placeBet", map[string]solanago.PublicKey{
		"market": market,
		"bet":    bet,
		"user":   user,
	}, amount, option)
	if err != nil {
		return nil, solanago.PublicKey{}, err
	}
	return ix, bet, nil
}

// ResolveMarket builds resolve_market signed by the provider's wallet, which
// must be the market creator for the program to accept it.
func (p *Program) ResolveMarket(market solanago.PublicKey, winning BetOption) (solanago.Instruction, error) {
	if winning > BetNo {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBetOption, uint8(winning))
	}
	return p.Instruction("resolveMarket", map[string]solanago.PublicKey{
		"market":   market,
		"resolver": p.provider.PublicKey(),
	}, winning)
}

// ClaimWinnings builds claim_winnings for the provider wallet's bet on market.
func (p *Program) ClaimWinnings(market solanago.PublicKey) (solanago.Instruction, error) {
	user := p.provider.PublicKey()
	bet, _, err := BetAddress(p.programID, market, user)
	if err != nil {
		return nil, err
	}
	return p.Instruction("claimWinnings", map[string]solanago.PublicKey{
		"market": market,
		"bet":    bet,
		"user":   user,
	})
}
