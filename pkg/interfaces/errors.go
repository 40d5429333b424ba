package interfaces

import (
	"errors"

	"pollranking/pkg/types"
)

// Error taxonomy shared by every component. Callers match with errors.Is;
// implementations wrap these with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidCredential covers bad signatures, tampered payloads, expiry and malformed tokens.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSessionNotFound is returned for unknown or expired polls.
	ErrSessionNotFound = errors.New("poll session not found")

	// ErrStoreWrite wraps any failed write against the document store.
	ErrStoreWrite = errors.New("store write failed")

	// ErrDenied is an authorization refusal. It is reported only to the acting connection.
	ErrDenied = errors.New("action denied")

	// ErrInvalidInput is the parent of all validation errors in pkg/types.
	ErrInvalidInput = types.ErrInvalidInput
)
