// Package poll owns the poll aggregate: every mutation is one atomic field write
// against the store followed by a fresh read of the whole document.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

// DefaultTTL bounds how long a poll document lives.
const DefaultTTL = 2 * time.Hour

// Service implements interfaces.PollService on top of a PollStore.
// It holds no per-poll state; concurrent callers only meet inside the store.
type Service struct {
	store  interfaces.PollStore
	ttl    time.Duration
	logger *slog.Logger
	newID  func() string
}

// NewService creates a poll service. A non-positive ttl falls back to DefaultTTL.
func NewService(store interfaces.PollStore, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "poll"),
		newID:  func() string { return uuid.New().String() },
	}
}

// TTL reports the lifetime given to new polls.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// CreatePoll stores a fresh poll and returns it with the creator's participant ID.
// The creator becomes admin but is not a participant until they connect.
func (s *Service) CreatePoll(ctx context.Context, topic string, votesPerVoter int, name string) (*types.Poll, string, error) {
	topic, err := types.ValidateTopic(topic)
	if err != nil {
		return nil, "", err
	}
	if err := types.ValidateVotesPerVoter(votesPerVoter); err != nil {
		return nil, "", err
	}
	if _, err := types.ValidateName(name); err != nil {
		return nil, "", err
	}

	pollID := s.newID()
	adminID := s.newID()
	poll := types.NewPoll(pollID, topic, votesPerVoter, adminID)

	if err := s.store.Create(ctx, poll, s.ttl); err != nil {
		return nil, "", fmt.Errorf("creating poll: %w", err)
	}

	s.logger.Info("poll created", "poll_id", pollID, "admin_id", adminID, "votes_per_voter", votesPerVoter)
	return poll, adminID, nil
}

// JoinPoll mints an identity for an existing poll without adding a participant.
func (s *Service) JoinPoll(ctx context.Context, pollID, name string) (*types.Poll, string, error) {
	if !types.IsValidID(pollID) {
		return nil, "", ErrInvalidPollID
	}
	if _, err := types.ValidateName(name); err != nil {
		return nil, "", err
	}

	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, "", err
	}

	participantID := s.newID()
	s.logger.Info("participant identity issued", "poll_id", pollID, "participant_id", participantID)
	return poll, participantID, nil
}

// RejoinPoll re-adds a known identity; repeating it leaves one entry with the latest name.
func (s *Service) RejoinPoll(ctx context.Context, pollID, participantID, name string) (*types.Poll, error) {
	return s.AddParticipant(ctx, pollID, participantID, name)
}

// AddParticipant upserts participants.<participantID> = name.
func (s *Service) AddParticipant(ctx context.Context, pollID, participantID, name string) (*types.Poll, error) {
	if !types.IsValidID(participantID) {
		return nil, ErrInvalidParticipantID
	}
	name, err := types.ValidateName(name)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetField(ctx, pollID, types.ParticipantPath(participantID), name); err != nil {
		return nil, fmt.Errorf("adding participant: %w", err)
	}

	s.logger.Debug("participant added", "poll_id", pollID, "participant_id", participantID)
	return s.GetPoll(ctx, pollID)
}

// RemoveParticipant deletes participants.<participantID> unless the poll has started.
// The bool is false when nothing was written; the returned poll is then the current snapshot.
func (s *Service) RemoveParticipant(ctx context.Context, pollID, participantID string) (*types.Poll, bool, error) {
	if !types.IsValidID(participantID) {
		return nil, false, ErrInvalidParticipantID
	}

	current, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, false, err
	}
	if current.HasStarted {
		s.logger.Debug("poll started, keeping participant", "poll_id", pollID, "participant_id", participantID)
		return current, false, nil
	}

	if err := s.store.DeleteField(ctx, pollID, types.ParticipantPath(participantID)); err != nil {
		return nil, false, fmt.Errorf("removing participant: %w", err)
	}

	s.logger.Debug("participant removed", "poll_id", pollID, "participant_id", participantID)
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, false, err
	}
	return poll, true, nil
}

// AddNomination stores a new nomination owned by participantID and returns its ID.
func (s *Service) AddNomination(ctx context.Context, pollID, participantID, text string) (*types.Poll, string, error) {
	if !types.IsValidID(participantID) {
		return nil, "", ErrInvalidParticipantID
	}
	text, err := types.ValidateNominationText(text)
	if err != nil {
		return nil, "", err
	}

	nominationID := s.newID()
	nomination := types.Nomination{UserID: participantID, Text: text}
	if err := s.store.SetField(ctx, pollID, types.NominationPath(nominationID), nomination); err != nil {
		return nil, "", fmt.Errorf("adding nomination: %w", err)
	}

	s.logger.Debug("nomination added", "poll_id", pollID, "nomination_id", nominationID, "participant_id", participantID)
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, "", err
	}
	return poll, nominationID, nil
}

// RemoveNomination deletes nominations.<nominationID>; an unknown ID still returns the snapshot.
func (s *Service) RemoveNomination(ctx context.Context, pollID, nominationID string) (*types.Poll, error) {
	if !types.IsValidID(nominationID) {
		return nil, ErrInvalidNominationID
	}

	if err := s.store.DeleteField(ctx, pollID, types.NominationPath(nominationID)); err != nil {
		return nil, fmt.Errorf("removing nomination: %w", err)
	}

	s.logger.Debug("nomination removed", "poll_id", pollID, "nomination_id", nominationID)
	return s.GetPoll(ctx, pollID)
}

// GetPoll reads the current document.
func (s *Service) GetPoll(ctx context.Context, pollID string) (*types.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("reading poll: %w", err)
	}
	return poll, nil
}
