package program

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/solanapredict/service/idl"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// BetOption is the side of a binary market. Encoded as a one-byte Borsh enum.
type BetOption uint8

const (
	BetYes BetOption = iota
	BetNo
)

// ParseBetOption accepts "yes"/"no" in any case.
func ParseBetOption(s string) (BetOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return BetYes, nil
	case "no":
		return BetNo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBetOption, s)
	}
}

func (o BetOption) String() string {
	switch o {
	case BetYes:
		return "yes"
	case BetNo:
		return "no"
	default:
		return fmt.Sprintf("BetOption(%d)", uint8(o))
	}
}

func (o BetOption) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *BetOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBetOption(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o BetOption) MarshalWithEncoder(encoder *bin.Encoder) error {
	if o > BetNo {
		return fmt.Errorf("%w: %d", ErrInvalidBetOption, uint8(o))
	}
	return encoder.WriteUint8(uint8(o))
}

func (o *BetOption) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	v, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	if BetOption(v) > BetNo {
		return fmt.Errorf("%w: %d", ErrInvalidBetOption, v)
	}
	*o = BetOption(v)
	return nil
}

var (
	// MarketDiscriminator tags Market account data.
	MarketDiscriminator = idl.AccountDiscriminator("Market")

	// BetDiscriminator tags Bet account data.
	BetDiscriminator = idl.AccountDiscriminator("Bet")
)

// Market is the on-chain state of one prediction market.
type Market struct {
	Creator       solanago.PublicKey `json:"creator"`
	Question      string             `json:"question"`
	Description   string             `json:"description"`
	EndTime       int64              `json:"end_time"`
	YesPool       uint64             `json:"yes_pool"`
	NoPool        uint64             `json:"no_pool"`
	TotalBets     uint64             `json:"total_bets"`
	IsResolved    bool               `json:"is_resolved"`
	WinningOption *BetOption         `json:"winning_option,omitempty"`
	CreatedAt     int64              `json:"created_at"`
	ResolvedAt    *int64             `json:"resolved_at,omitempty"`
}

// TotalPool returns the lamports staked on both sides.
func (m *Market) TotalPool() uint64 {
	return m.YesPool + m.NoPool
}

// Ended reports whether betting has closed at time now.
func (m *Market) Ended(now time.Time) bool {
	return now.Unix() >= m.EndTime
}

func (m Market) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(MarketDiscriminator.Bytes(), false); err != nil {
		return err
	}
	for _, v := range []interface{}{m.Creator, m.Question, m.Description, m.EndTime, m.YesPool, m.NoPool, m.TotalBets, m.IsResolved} {
		if err := encoder.Encode(v); err != nil {
			return err
		}
	}
	if err := encodeOptionalBetOption(encoder, m.WinningOption); err != nil {
		return err
	}
	if err := encoder.Encode(m.CreatedAt); err != nil {
		return err
	}
	return encodeOptionalInt64(encoder, m.ResolvedAt)
}

func (m *Market) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := expectDiscriminator(decoder, MarketDiscriminator, "Market"); err != nil {
		return err
	}
	for _, v := range []interface{}{&m.Creator, &m.Question, &m.Description, &m.EndTime, &m.YesPool, &m.NoPool, &m.TotalBets, &m.IsResolved} {
		if err := decoder.Decode(v); err != nil {
			return err
		}
	}
	var err error
	if m.WinningOption, err = decodeOptionalBetOption(decoder); err != nil {
		return err
	}
	if err := decoder.Decode(&m.CreatedAt); err != nil {
		return err
	}
	m.ResolvedAt, err = decodeOptionalInt64(decoder)
	return err
}

// Bet is one user's position in a market.
type Bet struct {
	Market    solanago.PublicKey `json:"market"`
	User      solanago.PublicKey `json:"user"`
	Amount    uint64             `json:"amount"`
	Option    BetOption          `json:"option"`
	Timestamp int64              `json:"timestamp"`
	Claimed   bool               `json:"claimed"`
}

func (b Bet) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(BetDiscriminator.Bytes(), false); err != nil {
		return err
	}
	if err := encoder.Encode(b.Market); err != nil {
		return err
	}
	if err := encoder.Encode(b.User); err != nil {
		return err
	}
	if err := encoder.Encode(b.Amount); err != nil {
		return err
	}
	if err := b.Option.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	if err := encoder.Encode(b.Timestamp); err != nil {
		return err
	}
	return encoder.Encode(b.Claimed)
}

func (b *Bet) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := expectDiscriminator(decoder, BetDiscriminator, "Bet"); err != nil {
		return err
	}
	if err := decoder.Decode(&b.Market); err != nil {
		return err
	}
	if err := decoder.Decode(&b.User); err != nil {
		return err
	}
	if err := decoder.Decode(&b.Amount); err != nil {
		return err
	}
	if err := b.Option.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	if err := decoder.Decode(&b.Timestamp); err != nil {
		return err
	}
	return decoder.Decode(&b.Claimed)
}

// DecodeMarket decodes Market account data.
func DecodeMarket(data []byte) (*Market, error) {
	var m Market
	if err := m.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &m, nil
}

// DecodeBet decodes Bet account data.
func DecodeBet(data []byte) (*Bet, error) {
	var b Bet
	if err := b.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode bet: %w", err)
	}
	return &b, nil
}

// EncodeAccount serializes a Market or Bet the way the program stores it.
func EncodeAccount(v bin.BinaryMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func expectDiscriminator(decoder *bin.Decoder, want idl.Discriminator, name string) error {
	got, err := decoder.ReadNBytes(8)
	if err != nil {
		return fmt.Errorf("failed to read discriminator: %w", err)
	}
	if !bytes.Equal(got, want.Bytes()) {
		return fmt.Errorf("%w: want %s", ErrUnexpectedAccount, name)
	}
	return nil
}

func encodeOptionalBetOption(encoder *bin.Encoder, v *BetOption) error {
	if v == nil {
		return encoder.WriteBool(false)
	}
	if err := encoder.WriteBool(true); err != nil {
		return err
	}
	return v.MarshalWithEncoder(encoder)
}

func decodeOptionalBetOption(decoder *bin.Decoder) (*BetOption, error) {
	present, err := decoder.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	var v BetOption
	if err := v.UnmarshalWithDecoder(decoder); err != nil {
		return nil, err
	}
	return &v, nil
}

func encodeOptionalInt64(encoder *bin.Encoder, v *int64) error {
	if v == nil {
		return encoder.WriteBool(false)
	}
	if err := encoder.WriteBool(true); err != nil {
		return err
	}
	return encoder.WriteInt64(*v, bin.LE)
}

func decodeOptionalInt64(decoder *bin.Decoder) (*int64, error) {
	present, err := decoder.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
