package poll

import (
	"fmt"

	"pollranking/pkg/interfaces"
)

// Identity inputs the service refuses before touching the store
var (
	ErrInvalidPollID        = fmt.Errorf("%w: poll id", interfaces.ErrInvalidInput)
	ErrInvalidParticipantID = fmt.Errorf("%w: participant id", interfaces.ErrInvalidInput)
	ErrInvalidNominationID  = fmt.Errorf("%w: nomination id", interfaces.ErrInvalidInput)
)
