package interfaces

import (
	"context"

	"pollranking/pkg/types"
)

// PollService owns every business rule for a poll session and is the sole writer of
// poll documents. Mutations are one atomic field write followed by a full read.
type PollService interface {
	// CreatePoll mints the poll and its admin identity.
	CreatePoll(ctx context.Context, topic string, votesPerVoter int, name string) (*types.Poll, string, error)

	// JoinPoll mints a participant identity for an existing poll without adding it.
	JoinPoll(ctx context.Context, pollID, name string) (*types.Poll, string, error)

	// RejoinPoll upserts an existing identity as a participant.
	RejoinPoll(ctx context.Context, pollID, participantID, name string) (*types.Poll, error)

	// AddParticipant upserts participants.<participantID>.
	AddParticipant(ctx context.Context, pollID, participantID, name string) (*types.Poll, error)

	// RemoveParticipant deletes participants.<participantID>. The boolean is false when the
	// poll has started and nothing was written; callers must not broadcast in that case.
	RemoveParticipant(ctx context.Context, pollID, participantID string) (*types.Poll, bool, error)

	// AddNomination stores a new nomination owned by participantID and returns its ID.
	AddNomination(ctx context.Context, pollID, participantID, text string) (*types.Poll, string, error)

	// RemoveNomination deletes nominations.<nominationID>.
	RemoveNomination(ctx context.Context, pollID, nominationID string) (*types.Poll, error)

	// GetPoll reads the current snapshot.
	GetPoll(ctx context.Context, pollID string) (*types.Poll, error)
}
