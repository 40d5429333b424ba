package token

import "errors"

var (
	ErrKeyTooShort    = errors.New("signing key must be at least 32 bytes")
	ErrMissingIssuer  = errors.New("issuer is required")
	ErrInvalidTTL     = errors.New("credential ttl must be positive")
	ErrMissingBinding = errors.New("credential must bind a poll and a participant")
)
