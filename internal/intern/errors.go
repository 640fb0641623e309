package intern

import (
	"errors"
	"fmt"
)

// ErrDanglingID is the sentinel wrapped by every InternerError with code
// DanglingID. Use errors.Is(err, ErrDanglingID) or IsDanglingID.
var ErrDanglingID = errors.New("dangling id")

// InternerErrorCode categorizes interner errors.
type InternerErrorCode string

const (
	// DanglingID indicates an id that was never issued by this interner.
	DanglingID InternerErrorCode = "DANGLING_ID"

	// Exhausted indicates an id space ran out of 32-bit local indices.
	Exhausted InternerErrorCode = "EXHAUSTED"
)

// InternerError reports a reference to an id the interner cannot vouch for.
type InternerError struct {
	// Code identifies the error category.
	Code InternerErrorCode

	// Space is the id space involved: "name", "expr" or "path".
	Space string

	// ID is the offending raw id, generation included (zero for
	// exhaustion).
	ID uint64

	// Context names the node being interned, when there is one.
	Context string
}

// Error implements the error interface.
func (e *InternerError) Error() string {
	if e.Code == Exhausted {
		return fmt.Sprintf("%s: %s id space exhausted", e.Code, e.Space)
	}
	gen, local := uint32(e.ID>>32), uint32(e.ID)
	msg := fmt.Sprintf("%s: %s id %d of generation %d not issued by this interner", e.Code, e.Space, local, gen)
	if e.Context != "" {
		msg += " (in " + e.Context + ")"
	}
	return msg
}

// Unwrap lets errors.Is match ErrDanglingID.
func (e *InternerError) Unwrap() error {
	if e.Code == DanglingID {
		return ErrDanglingID
	}
	return nil
}

// IsDanglingID returns true if err is (or wraps) a dangling id error.
func IsDanglingID(err error) bool {
	var ie *InternerError
	if errors.As(err, &ie) {
		return ie.Code == DanglingID
	}
	return false
}

func dangling(space string, id uint64, context string) *InternerError {
	return &InternerError{Code: DanglingID, Space: space, ID: id, Context: context}
}
