package payment

import (
	"fmt"
	"strings"
)

// RiskBlockedError is terminal: the attempt was blocked before any
// resource was committed. Flags carry the triggered checks for audit.
type RiskBlockedError struct {
	Score int
	Flags []string
}

func (e *RiskBlockedError) Error() string {
	return fmt.Sprintf("transaction blocked by risk engine (score %d): %s",
		e.Score, strings.Join(e.Flags, ", "))
}

// ValidationError is terminal and never retried: the credential or the
// request itself is unusable.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("credential validation failed: %s", e.Code)
}

// LimitError is terminal and never retried: a credential cap would be
// breached.
type LimitError struct {
	Code string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("credential limit exceeded: %s", e.Code)
}
