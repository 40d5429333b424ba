package types

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the parent of every validation failure in this package.
var ErrInvalidInput = errors.New("invalid input")

// Field-level validation errors; each wraps ErrInvalidInput
var (
	ErrInvalidTopic         = fmt.Errorf("%w: topic", ErrInvalidInput)
	ErrInvalidVotesPerVoter = fmt.Errorf("%w: votesPerVoter must be %d-%d", ErrInvalidInput, MinVotesPerVoter, MaxVotesPerVoter)
	ErrInvalidName          = fmt.Errorf("%w: name", ErrInvalidInput)
	ErrInvalidNomination    = fmt.Errorf("%w: nomination text", ErrInvalidInput)
	ErrInvalidMessageType   = fmt.Errorf("%w: unknown message type", ErrInvalidInput)
	ErrMissingTargetID      = fmt.Errorf("%w: id is required", ErrInvalidInput)
	ErrInvalidID            = fmt.Errorf("%w: malformed id", ErrInvalidInput)
	ErrInvalidFieldPath     = fmt.Errorf("%w: field path", ErrInvalidInput)
)
