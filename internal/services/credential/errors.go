package credential

import "errors"

// Service errors
var (
	ErrInvalidLimits    = errors.New("invalid credential limits")
	ErrUnknownTier      = errors.New("unknown credential tier")
	ErrInvalidSignature = errors.New("credential signature verification failed")
	ErrNotActive        = errors.New("credential is not active")
	ErrNotPending       = errors.New("credential is not pending activation")
)
