package router

import (
	"errors"
	"fmt"

	"pollranking/pkg/interfaces"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrMalformedFrame    = fmt.Errorf("%w: malformed frame", interfaces.ErrInvalidInput)
	ErrFrameTooLarge     = fmt.Errorf("%w: frame too large", interfaces.ErrInvalidInput)
)
