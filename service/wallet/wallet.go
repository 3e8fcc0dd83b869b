package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrSigningUnavailable is returned by wallets that can identify a user but
// cannot sign on their behalf (e.g. a browser wallet that signs client-side).
var ErrSigningUnavailable = errors.New("wallet cannot sign transactions")

// Wallet is a user's identity: a public key and, possibly, a way to sign.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// ID returns the identity key of w, or "" when no wallet is connected.
func ID(w Wallet) string {
	if w == nil {
		return ""
	}
	pk := w.PublicKey()
	if pk.IsZero() {
		return ""
	}
	return pk.String()
}

// KeypairWallet signs with a local private key.
type KeypairWallet struct {
	key solana.PrivateKey
}

// NewKeypairWallet wraps a private key.
func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// LoadKeypairFile reads a Solana CLI keypair file (JSON array of 64 bytes).
func LoadKeypairFile(path string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction adds this wallet's signature to tx. Other required signers are
// left untouched.
func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	pub := w.key.PublicKey()
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// ReadOnlyWallet knows only a public key.
type ReadOnlyWallet struct {
	key solana.PublicKey
}

// NewReadOnlyWallet wraps a public key.
func NewReadOnlyWallet(key solana.PublicKey) *ReadOnlyWallet {
	return &ReadOnlyWallet{key: key}
}

// ParseReadOnlyWallet builds a ReadOnlyWallet from a base58 public key.
func ParseReadOnlyWallet(publicKey string) (*ReadOnlyWallet, error) {
	key, err := solana.PublicKeyFromBase58(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key %q: %w", publicKey, err)
	}
	if key.IsZero() {
		return nil, fmt.Errorf("invalid public key %q: zero key", publicKey)
	}
	return NewReadOnlyWallet(key), nil
}

func (w *ReadOnlyWallet) PublicKey() solana.PublicKey {
	return w.key
}

func (w *ReadOnlyWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return ErrSigningUnavailable
}
