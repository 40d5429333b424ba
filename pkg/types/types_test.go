package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewPoll_InitialDocument(t *testing.T) {
	poll := NewPoll("poll-1", "lunch", 2, "admin-1")

	if poll.HasStarted {
		t.Error("new poll must not be started")
	}
	if poll.Participants == nil || len(poll.Participants) != 0 {
		t.Errorf("expected empty participants map, got %v", poll.Participants)
	}
	if poll.Nominations == nil || len(poll.Nominations) != 0 {
		t.Errorf("expected empty nominations map, got %v", poll.Nominations)
	}
	if !poll.IsAdmin("admin-1") {
		t.Error("creator should be admin")
	}
	if poll.IsAdmin("") {
		t.Error("empty identity must never be admin")
	}
}

func TestPoll_DocumentLayout(t *testing.T) {
	poll := NewPoll("poll-1", "lunch", 2, "admin-1")
	poll.Participants["p1"] = "Bob"
	poll.Nominations["n1"] = Nomination{UserID: "admin-1", Text: "Pizza"}

	data, err := json.Marshal(poll)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"id", "topic", "votesPerVoter", "adminID", "hasStarted", "participants", "nominations"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document missing key %q", key)
		}
	}

	nominations := doc["nominations"].(map[string]any)
	entry := nominations["n1"].(map[string]any)
	if entry["userID"] != "admin-1" || entry["text"] != "Pizza" {
		t.Errorf("unexpected nomination layout: %v", entry)
	}
}

func TestPoll_Normalize(t *testing.T) {
	var poll Poll
	poll.Normalize()
	if poll.Participants == nil || poll.Nominations == nil {
		t.Fatal("Normalize should allocate both maps")
	}

	poll.Participants["p1"] = "Bob"
	poll.Normalize()
	if len(poll.Participants) != 1 {
		t.Error("Normalize must keep existing entries")
	}
}

func TestFieldPaths(t *testing.T) {
	tests := []struct {
		name string
		path FieldPath
		want string
	}{
		{"participant", ParticipantPath("abc"), "participants.abc"},
		{"nomination", NominationPath("n1"), "nominations.n1"},
		{"started flag", HasStartedPath(), "hasStarted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidation_Limits(t *testing.T) {
	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"valid topic", func() error { _, err := ValidateTopic("lunch"); return err }, nil},
		{"blank topic", func() error { _, err := ValidateTopic("   "); return err }, ErrInvalidTopic},
		{"topic too long", func() error { _, err := ValidateTopic(strings.Repeat("a", MaxTopicLength+1)); return err }, ErrInvalidTopic},
		{"votes zero", func() error { return ValidateVotesPerVoter(0) }, ErrInvalidVotesPerVoter},
		{"votes six", func() error { return ValidateVotesPerVoter(6) }, ErrInvalidVotesPerVoter},
		{"votes two", func() error { return ValidateVotesPerVoter(2) }, nil},
		{"valid name", func() error { _, err := ValidateName("Alice"); return err }, nil},
		{"name too long", func() error { _, err := ValidateName(strings.Repeat("b", MaxNameLength+1)); return err }, ErrInvalidName},
		{"nomination ok", func() error { _, err := ValidateNominationText("Pizza"); return err }, nil},
		{"nomination empty", func() error { _, err := ValidateNominationText(""); return err }, ErrInvalidNomination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("validation errors must wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidateName_Trims(t *testing.T) {
	name, err := ValidateName("  Alice  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Alice" {
		t.Errorf("expected trimmed name, got %q", name)
	}
}

func TestInboundMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     InboundMessage
		wantErr error
	}{
		{"nominate", InboundMessage{Type: MessageTypeNominate, Text: " Pizza "}, nil},
		{"nominate empty", InboundMessage{Type: MessageTypeNominate}, ErrInvalidNomination},
		{"remove nomination", InboundMessage{Type: MessageTypeRemoveNomination, ID: "n1"}, nil},
		{"remove nomination no id", InboundMessage{Type: MessageTypeRemoveNomination}, ErrMissingTargetID},
		{"remove participant", InboundMessage{Type: MessageTypeRemoveParticipant, ID: "p1"}, nil},
		{"remove participant bad id", InboundMessage{Type: MessageTypeRemoveParticipant, ID: "a.b"}, ErrInvalidID},
		{"unknown type", InboundMessage{Type: "start_poll"}, ErrInvalidMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			err := msg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	msg := InboundMessage{Type: MessageTypeNominate, Text: "  Tacos "}
	if err := msg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "Tacos" {
		t.Errorf("Validate should trim nomination text, got %q", msg.Text)
	}
}

func TestOutboundMessages(t *testing.T) {
	poll := NewPoll("poll-1", "lunch", 2, "admin-1")

	updated := NewPollUpdated(poll)
	if updated.Type != MessageTypePollUpdated || updated.Poll != poll {
		t.Errorf("unexpected poll_updated message: %+v", updated)
	}

	exc := NewException(ExceptionUnauthorized, "admin privileges required")
	data, err := json.Marshal(exc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"type":"exception"`) || !strings.Contains(string(data), `"kind":"unauthorized"`) {
		t.Errorf("unexpected exception encoding: %s", data)
	}
}

func TestFieldPath_Validate(t *testing.T) {
	tests := []struct {
		name    string
		path    FieldPath
		wantErr bool
	}{
		{"participant", ParticipantPath("0b6f3c2e-1a2b-4c5d-8e9f-000000000001"), false},
		{"started flag", HasStartedPath(), false},
		{"empty", FieldPath{}, true},
		{"dotted segment", FieldPath{FieldParticipants, "a.b"}, true},
		{"quote injection", FieldPath{FieldNominations, `x"}`}, true},
		{"too long", FieldPath{FieldNominations, strings.Repeat("a", MaxIDLength+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFieldPath) {
				t.Errorf("expected ErrInvalidFieldPath, got %v", err)
			}
		})
	}
}
