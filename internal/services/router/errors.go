package router

import "errors"

// Service errors
var (
	ErrNoEligibleRail = errors.New("no eligible payment rail")
	ErrNoFallbackRail = errors.New("no eligible fallback rail")
)

// TerminalError wraps a rail failure that must not be retried, such as
// a validation rejection from the gateway. Anything else returned by a
// rail executor is treated as transient.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err so Execute fails immediately instead of retrying.
func Terminal(err error) error {
	return &TerminalError{Err: err}
}
