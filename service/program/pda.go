package program

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

var (
	marketSeed = []byte("market")
	betSeed    = []byte("bet")
)

// MarketAddress derives the market PDA from seeds ["market", creator, question].
// Seeds are limited to 32 bytes each, so questions longer than that cannot be
// addressed this way.
func MarketAddress(programID, creator solanago.PublicKey, question string) (solanago.PublicKey, uint8, error) {
	if len(question) > solanago.MaxSeedLength {
		return solanago.PublicKey{}, 0, fmt.Errorf("%w: %d bytes exceeds the %d byte seed limit", ErrQuestionTooLong, len(question), solanago.MaxSeedLength)
	}
	addr, bump, err := solanago.FindProgramAddress([][]byte{marketSeed, creator.Bytes(), []byte(question)}, programID)
	if err != nil {
		return solanago.PublicKey{}, 0, fmt.Errorf("failed to derive market address: %w", err)
	}
	return addr, bump, nil
}

// BetAddress derives the bet PDA from seeds ["bet", market, user].
func BetAddress(programID, market, user solanago.PublicKey) (solanago.PublicKey, uint8, error) {
	addr, bump, err := solanago.FindProgramAddress([][]byte{betSeed, market.Bytes(), user.Bytes()}, programID)
	if err != nil {
		return solanago.PublicKey{}, 0, fmt.Errorf("failed to derive bet address: %w", err)
	}
	return addr, bump, nil
}
