package types

import (
	"strings"
)

// Inbound message kinds accepted on the real-time channel
const (
	MessageTypeNominate          = "nominate"
	MessageTypeRemoveNomination  = "remove_nomination"
	MessageTypeRemoveParticipant = "remove_participant"
)

// Outbound message kinds emitted by the coordinator
const (
	MessageTypePollUpdated = "poll_updated"
	MessageTypeException   = "exception"
)

// Exception kinds carried by an exception message
const (
	ExceptionBadRequest     = "bad_request"
	ExceptionUnauthorized   = "unauthorized"
	ExceptionRateLimited    = "rate_limited"
	ExceptionSessionExpired = "session_expired"
	ExceptionInternal       = "internal"
)

// Poll is the aggregate root for one poll session.
// ID, Topic, VotesPerVoter and AdminID never change after creation; participants and
// nominations are only mutated one field at a time through the poll service.
type Poll struct {
	ID            string                `json:"id"`
	Topic         string                `json:"topic"`
	VotesPerVoter int                   `json:"votesPerVoter"`
	AdminID       string                `json:"adminID"`
	HasStarted    bool                  `json:"hasStarted"`
	Participants  map[string]string     `json:"participants"`
	Nominations   map[string]Nomination `json:"nominations"`
}

// Nomination is one entry of the shared list, owned by the participant who added it.
type Nomination struct {
	UserID string `json:"userID"`
	Text   string `json:"text"`
}

// NewPoll builds the initial document with empty participant and nomination maps.
func NewPoll(id, topic string, votesPerVoter int, adminID string) *Poll {
	return &Poll{
		ID:            id,
		Topic:         topic,
		VotesPerVoter: votesPerVoter,
		AdminID:       adminID,
		HasStarted:    false,
		Participants:  make(map[string]string),
		Nominations:   make(map[string]Nomination),
	}
}

// Normalize replaces nil maps so a decoded document always has both collections.
func (p *Poll) Normalize() {
	if p.Participants == nil {
		p.Participants = make(map[string]string)
	}
	if p.Nominations == nil {
		p.Nominations = make(map[string]Nomination)
	}
}

// IsAdmin reports whether participantID created the poll.
func (p *Poll) IsAdmin(participantID string) bool {
	return participantID != "" && p.AdminID == participantID
}

// FieldPath addresses one value inside a poll document, outermost key first.
type FieldPath []string

// Document field names
const (
	FieldParticipants = "participants"
	FieldNominations  = "nominations"
	FieldHasStarted   = "hasStarted"
)

// ParticipantPath addresses participants.<participantID>.
func ParticipantPath(participantID string) FieldPath {
	return FieldPath{FieldParticipants, participantID}
}

// NominationPath addresses nominations.<nominationID>.
func NominationPath(nominationID string) FieldPath {
	return FieldPath{FieldNominations, nominationID}
}

// HasStartedPath addresses the hasStarted flag.
func HasStartedPath() FieldPath {
	return FieldPath{FieldHasStarted}
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// InboundMessage is a client frame on the real-time channel.
// Text is used by nominate; ID names the nomination or participant to remove.
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// PollUpdatedMessage carries the full poll snapshot to every member of a group.
type PollUpdatedMessage struct {
	Type string `json:"type"`
	Poll *Poll  `json:"poll"`
}

// ExceptionMessage is unicast to the connection whose action was rejected.
type ExceptionMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewPollUpdated wraps a snapshot for broadcast.
func NewPollUpdated(poll *Poll) *PollUpdatedMessage {
	return &PollUpdatedMessage{Type: MessageTypePollUpdated, Poll: poll}
}

// NewException builds a rejection message.
func NewException(kind, message string) *ExceptionMessage {
	return &ExceptionMessage{Type: MessageTypeException, Kind: kind, Message: message}
}
