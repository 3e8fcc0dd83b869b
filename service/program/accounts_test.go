package program

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMarket() *Market {
	winning := BetNo
	resolvedAt := int64(1_750_000_500)
	return &Market{
		Creator:       solanago.NewWallet().PublicKey(),
		Question:      "Will it rain?",
		Description:   "Resolves yes on any rain.",
		EndTime:       1_750_000_000,
		YesPool:       3_000_000,
		NoPool:        5_000_000,
		TotalBets:     4,
		IsResolved:    true,
		WinningOption: &winning,
		CreatedAt:     1_749_000_000,
		ResolvedAt:    &resolvedAt,
	}
}

func TestMarket_EncodeDecode(t *testing.T) {
	want := sampleMarket()
	data, err := EncodeAccount(want)
	require.NoError(t, err)
	assert.Equal(t, idl.AccountDiscriminator("Market").Bytes(), data[:8])

	got, err := DecodeMarket(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(8_000_000), got.TotalPool())
}

func TestMarket_UnresolvedOptionalsAreNil(t *testing.T) {
	want := sampleMarket()
	want.IsResolved = false
	want.WinningOption = nil
	want.ResolvedAt = nil

	data, err := EncodeAccount(want)
	require.NoError(t, err)

	got, err := DecodeMarket(data)
	require.NoError(t, err)
	assert.Nil(t, got.WinningOption)
	assert.Nil(t, got.ResolvedAt)
}

func TestMarket_Ended(t *testing.T) {
	m := &Market{EndTime: 1_750_000_000}
	assert.False(t, m.Ended(time.Unix(1_749_999_999, 0)))
	assert.True(t, m.Ended(time.Unix(1_750_000_000, 0)))
}

func TestDecode_WrongDiscriminator(t *testing.T) {
	bet := &Bet{
		Market:    solanago.NewWallet().PublicKey(),
		User:      solanago.NewWallet().PublicKey(),
		Amount:    42,
		Option:    BetYes,
		Timestamp: 1_749_500_000,
	}
	data, err := EncodeAccount(bet)
	require.NoError(t, err)

	_, err = DecodeMarket(data)
	assert.ErrorIs(t, err, ErrUnexpectedAccount)

	got, err := DecodeBet(data)
	require.NoError(t, err)
	assert.Equal(t, bet, got)

	_, err = DecodeBet(data[:4])
	assert.Error(t, err)
}

func TestBetOption(t *testing.T) {
	opt, err := ParseBetOption(" YES ")
	require.NoError(t, err)
	assert.Equal(t, BetYes, opt)

	_, err = ParseBetOption("maybe")
	assert.ErrorIs(t, err, ErrInvalidBetOption)

	out, err := json.Marshal(BetNo)
	require.NoError(t, err)
	assert.JSONEq(t, `"no"`, string(out))

	var parsed BetOption
	require.NoError(t, json.Unmarshal([]byte(`"yes"`), &parsed))
	assert.Equal(t, BetYes, parsed)

	_, err = EncodeAccount(&Bet{Option: BetOption(2)})
	assert.ErrorIs(t, err, ErrInvalidBetOption)
}
