// Package guard decides whether a participant may perform an action on a poll.
package guard

import (
	"fmt"

	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// adminOnly lists the actions reserved for the poll creator.
var adminOnly = map[string]bool{
	types.MessageTypeRemoveParticipant: true,
	types.MessageTypeRemoveNomination:  true,
}

// RequiresAdmin reports whether action needs the poll document to decide.
func RequiresAdmin(action string) bool {
	return adminOnly[action]
}

// Authorize allows admin-only actions iff actorID is the poll's admin and allows
// everything else. Admin rights do not depend on the admin being connected.
func Authorize(action, actorID string, poll *types.Poll) Decision {
	if !RequiresAdmin(action) {
		return Allowed
	}
	if poll == nil || !poll.IsAdmin(actorID) {
		return Denied
	}
	return Allowed
}

// Check is Authorize expressed as an error wrapping interfaces.ErrDenied.
func Check(action, actorID string, poll *types.Poll) error {
	if Authorize(action, actorID, poll) == Denied {
		return fmt.Errorf("%w: %s requires admin privileges", interfaces.ErrDenied, action)
	}
	return nil
}
