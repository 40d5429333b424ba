package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

type CreatePollRequest struct {
	Topic         string `json:"topic"`
	VotesPerVoter int    `json:"votesPerVoter"`
	Name          string `json:"name"`
}

type JoinPollRequest struct {
	PollID string `json:"pollID"`
	Name   string `json:"name"`
}

// CredentialResponse is returned by create and join.
type CredentialResponse struct {
	Poll        *types.Poll `json:"poll"`
	AccessToken string      `json:"accessToken"`
}

type PollResponse struct {
	Poll            *types.Poll `json:"poll"`
	ConnectionCount int         `json:"connectionCount,omitempty"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Store       string         `json:"store"`
	Hub         string         `json:"hub"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, interfaces.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, interfaces.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid or expired access token"
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return http.StatusNotFound, "poll not found or expired"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
