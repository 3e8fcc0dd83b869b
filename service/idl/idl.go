package idl

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
)

//go:embed idl.json
var embeddedIDL []byte

var (
	// ErrInvalidIDL is returned when an interface description cannot be used to
	// bind a program client (bad JSON, missing name, bad program address).
	ErrInvalidIDL = errors.New("invalid IDL")

	// ErrInstructionNotFound is returned when an instruction is not described by the IDL.
	ErrInstructionNotFound = errors.New("instruction not found in IDL")

	defaultOnce sync.Once
	defaultIDL  *IDL
	defaultErr  error
)

// IDL is an Anchor interface description document (legacy layout, where the
// program address lives in metadata.address).
type IDL struct {
	Version      string        `json:"version"`
	Name         string        `json:"name"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []TypeDef     `json:"accounts"`
	Types        []TypeDef     `json:"types"`
	Errors       []ErrorDef    `json:"errors"`
	Metadata     Metadata      `json:"metadata"`

	programID solana.PublicKey
}

// Instruction describes one callable instruction of the program.
type Instruction struct {
	Name     string        `json:"name"`
	Accounts []AccountItem `json:"accounts"`
	Args     []Field       `json:"args"`
}

// AccountItem describes an account an instruction expects, in order.
type AccountItem struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	IsSigner bool   `json:"isSigner"`
}

// Field is a named, typed struct field or instruction argument.
// Type is kept raw: it is either a primitive name ("u64") or an object
// ({"defined": "BetOption"}, {"option": "i64"}).
type Field struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

// TypeDef is a named account or user-defined type.
type TypeDef struct {
	Name string    `json:"name"`
	Type TypeDefTy `json:"type"`
}

// TypeDefTy is the body of a TypeDef.
type TypeDefTy struct {
	Kind     string    `json:"kind"` // "struct" or "enum"
	Fields   []Field   `json:"fields,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// Variant is one enum variant.
type Variant struct {
	Name string `json:"name"`
}

// ErrorDef is a custom program error.
type ErrorDef struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Metadata carries deployment information.
type Metadata struct {
	Address string `json:"address"`
}

// Parse decodes and validates an IDL document.
func Parse(data []byte) (*IDL, error) {
	var doc IDL
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDL, err)
	}

	if doc.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidIDL)
	}
	if doc.Metadata.Address == "" {
		return nil, fmt.Errorf("%w: metadata.address is required", ErrInvalidIDL)
	}

	programID, err := solana.PublicKeyFromBase58(doc.Metadata.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata.address %q: %v", ErrInvalidIDL, doc.Metadata.Address, err)
	}
	doc.programID = programID

	seen := make(map[string]struct{}, len(doc.Instructions))
	for _, ix := range doc.Instructions {
		key := SnakeCase(ix.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate instruction %q", ErrInvalidIDL, ix.Name)
		}
		seen[key] = struct{}{}
	}

	return &doc, nil
}

// Load reads and parses an IDL file from disk.
func Load(path string) (*IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IDL %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the IDL embedded at build time.
func Default() (*IDL, error) {
	defaultOnce.Do(func() {
		defaultIDL, defaultErr = Parse(embeddedIDL)
	})
	return defaultIDL, defaultErr
}

// MustDefault is like Default but panics if the embedded IDL is invalid.
func MustDefault() *IDL {
	doc, err := Default()
	if err != nil {
		panic(fmt.Sprintf("failed to load embedded IDL: %v", err))
	}
	return doc
}

// ProgramID returns the program address taken from metadata.address.
func (d *IDL) ProgramID() solana.PublicKey {
	return d.programID
}

// Instruction looks up an instruction by name. Both camelCase ("placeBet")
// and snake_case ("place_bet") spellings are accepted.
func (d *IDL) Instruction(name string) (*Instruction, error) {
	want := SnakeCase(name)
	for i := range d.Instructions {
		if SnakeCase(d.Instructions[i].Name) == want {
			return &d.Instructions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInstructionNotFound, name)
}

// Account looks up an account type definition by name.
func (d *IDL) Account(name string) (*TypeDef, bool) {
	for i := range d.Accounts {
		if d.Accounts[i].Name == name {
			return &d.Accounts[i], true
		}
	}
	return nil, false
}

// ErrorByCode maps an Anchor custom error code to its definition.
func (d *IDL) ErrorByCode(code int) (ErrorDef, bool) {
	for _, e := range d.Errors {
		if e.Code == code {
			return e, true
		}
	}
	return ErrorDef{}, false
}

// InstructionNames returns the snake_case names of all instructions in IDL order.
func (d *IDL) InstructionNames() []string {
	names := make([]string, len(d.Instructions))
	for i, ix := range d.Instructions {
		names[i] = SnakeCase(ix.Name)
	}
	return names
}
