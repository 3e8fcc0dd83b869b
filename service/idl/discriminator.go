package idl

import (
	"crypto/sha256"
	"strings"
	"unicode"
)

// Discriminator is the 8-byte prefix Anchor uses to tag instructions and accounts.
type Discriminator [8]byte

// Bytes returns the discriminator as a slice.
func (d Discriminator) Bytes() []byte {
	return d[:]
}

// InstructionDiscriminator returns sha256("global:<snake_case name>")[:8].
func InstructionDiscriminator(name string) Discriminator {
	return sighash("global", SnakeCase(name))
}

// AccountDiscriminator returns sha256("account:<Name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return sighash("account", name)
}

func sighash(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// SnakeCase converts "placeBet" or "PlaceBet" to "place_bet". Names that are
// already snake_case are returned unchanged.
func SnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 && name[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
