package hub

import (
	"errors"
	"fmt"

	"pollranking/pkg/interfaces"
)

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrUnknownAction     = errors.New("unknown action")
	ErrNotParticipant    = fmt.Errorf("%w: sender is not a participant of this poll", interfaces.ErrDenied)
)
