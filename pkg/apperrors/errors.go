// Package apperrors declares the error taxonomy shared across the grid
// engine. Call sites branch on kind via errors.Is/errors.As rather than
// string matching.
package apperrors

import "fmt"

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrX) or via
// New/Wrap below so errors.Is(err, ErrX) keeps working through layers.
var (
	// ErrInvalidConfig: missing required fields, out-of-range values,
	// mode/field mismatches. Fatal at startup.
	ErrInvalidConfig = &Error{Kind: "InvalidConfig"}

	// ErrCapabilityUnmet: adapter lacks mark_price or orderbook. Fatal at
	// startup.
	ErrCapabilityUnmet = &Error{Kind: "CapabilityUnmet"}

	// ErrAdapterTransient: network, disconnect, 429, transient exchange
	// errors. Recovered by retry/backoff.
	ErrAdapterTransient = &Error{Kind: "AdapterTransient"}

	// ErrAdapterReject: place/cancel failed for a permanent reason.
	ErrAdapterReject = &Error{Kind: "AdapterReject"}

	// ErrUnknownOrder: reconciliation could not find the order anywhere.
	ErrUnknownOrder = &Error{Kind: "UnknownOrder"}

	// ErrPreconditionViolation: rounding step <= 0, negative price,
	// malformed level. Fatal per-operation, not fatal to the engine.
	ErrPreconditionViolation = &Error{Kind: "PreconditionViolation"}

	// ErrLogic: a panic/assertion surfaced in the core path, with context.
	ErrLogic = &Error{Kind: "Logic"}
)

// Error is a kind-tagged error. The zero value of each sentinel above is
// usable directly as a comparison target for errors.Is; Wrap/New produce a
// distinct *Error carrying a message and optional cause while remaining
// Is-compatible with the sentinel.
type Error struct {
	Kind string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same taxonomy kind (sentinel comparison
// by Kind, not by pointer identity, so wrapped instances still match).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a new *Error of the given sentinel's kind with a message.
func New(kind *Error, msg string) *Error {
	return &Error{Kind: kind.Kind, Msg: msg}
}

// Newf builds a new *Error of the given sentinel's kind with a formatted
// message.
func Newf(kind *Error, format string, args ...any) *Error {
	return &Error{Kind: kind.Kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a new *Error of the given sentinel's kind wrapping cause.
func Wrap(kind *Error, msg string, cause error) *Error {
	return &Error{Kind: kind.Kind, Msg: msg, Err: cause}
}
