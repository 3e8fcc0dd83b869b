package program

import (
	"errors"
	"fmt"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/solana"
)

var (
	// ErrWalletNotConnected is returned when an operation needs a program
	// handle but no wallet identity is available.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// Pre-flight checks mirroring the limits enforced by the on-chain program.
	ErrQuestionTooLong    = errors.New("question too long")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrInvalidEndTime     = errors.New("invalid end time")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidBetOption   = errors.New("invalid bet option")

	// ErrUnexpectedAccount is returned when account data does not carry the
	// expected discriminator.
	ErrUnexpectedAccount = errors.New("unexpected account type")
)

// ProgramError is a custom error returned by the on-chain program, decoded
// through the IDL error table.
type ProgramError struct {
	Code int
	Name string
	Msg  string
	Err  error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program error %d (%s): %s", e.Code, e.Name, e.Msg)
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}

// decodeProgramError replaces err with a *ProgramError when it carries a
// custom error code the IDL knows about. Other errors pass through unchanged.
func decodeProgramError(doc *idl.IDL, err error) error {
	if err == nil {
		return nil
	}
	code, ok := solana.ParseCustomErrorCode(err)
	if !ok {
		return err
	}
	def, ok := doc.ErrorByCode(code)
	if !ok {
		return err
	}
	return &ProgramError{Code: def.Code, Name: def.Name, Msg: def.Msg, Err: err}
}
