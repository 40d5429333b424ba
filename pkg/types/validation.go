package types

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Input limits shared by the front door and the real-time channel
const (
	MaxTopicLength      = 100
	MinVotesPerVoter    = 1
	MaxVotesPerVoter    = 5
	MaxNameLength       = 25
	MaxNominationLength = 100
	MaxIDLength         = 64
)

// ValidateTopic trims and checks a poll topic.
func ValidateTopic(topic string) (string, error) {
	return validateText(topic, MaxTopicLength, ErrInvalidTopic)
}

// ValidateVotesPerVoter checks the per-voter vote budget.
func ValidateVotesPerVoter(votes int) error {
	if votes < MinVotesPerVoter || votes > MaxVotesPerVoter {
		return fmt.Errorf("%w: got %d", ErrInvalidVotesPerVoter, votes)
	}
	return nil
}

// ValidateName trims and checks a participant display name.
func ValidateName(name string) (string, error) {
	return validateText(name, MaxNameLength, ErrInvalidName)
}

// ValidateNominationText trims and checks nomination text.
func ValidateNominationText(text string) (string, error) {
	return validateText(text, MaxNominationLength, ErrInvalidNomination)
}

// IsValidMessageType checks if the inbound message type is one of the accepted kinds.
func IsValidMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeNominate,
		MessageTypeRemoveNomination,
		MessageTypeRemoveParticipant:
		return true
	default:
		return false
	}
}

// Validate checks the fields each inbound message kind requires.
func (m *InboundMessage) Validate() error {
	if !IsValidMessageType(m.Type) {
		return ErrInvalidMessageType
	}
	switch m.Type {
	case MessageTypeNominate:
		text, err := ValidateNominationText(m.Text)
		if err != nil {
			return err
		}
		m.Text = text
	case MessageTypeRemoveNomination, MessageTypeRemoveParticipant:
		if strings.TrimSpace(m.ID) == "" {
			return ErrMissingTargetID
		}
		if !IsValidID(m.ID) {
			return ErrInvalidID
		}
	}
	return nil
}

// IsValidID checks that an identifier is safe to use as a document key.
func IsValidID(id string) bool {
	return len(id) > 0 && len(id) <= MaxIDLength && idRegex.MatchString(id)
}

// Validate rejects empty paths and segments that are not plain identifiers.
func (p FieldPath) Validate() error {
	if len(p) == 0 {
		return ErrInvalidFieldPath
	}
	for _, seg := range p {
		if !IsValidID(seg) {
			return fmt.Errorf("%w: segment %q", ErrInvalidFieldPath, seg)
		}
	}
	return nil
}

func validateText(value string, max int, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	if n < 1 || n > max {
		return "", fmt.Errorf("%w: length must be 1-%d characters", sentinel, max)
	}
	return trimmed, nil
}
