package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pollranking/internal/token"
	"pollranking/internal/websocket"
	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

// Issuer mints and checks access tokens.
type Issuer interface {
	Issue(pollID, participantID, name string) (string, error)
	websocket.Verifier
}

// ConnectionStats exposes live connection counts from the real-time coordinator.
type ConnectionStats interface {
	ConnectionCount(pollID string) int
	Stats() map[string]int
	IsRunning() bool
}

// HealthChecker reports backing store health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PollHandler serves the create, join and rejoin front door.
type PollHandler struct {
	service interfaces.PollService
	issuer  Issuer
	stats   ConnectionStats
	logger  *slog.Logger
}

func NewPollHandler(service interfaces.PollService, issuer Issuer, stats ConnectionStats, logger *slog.Logger) *PollHandler {
	return &PollHandler{service: service, issuer: issuer, stats: stats, logger: logger}
}

// Create handles POST /api/polls.
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	poll, adminID, err := h.service.CreatePoll(r.Context(), req.Topic, req.VotesPerVoter, req.Name)
	if err != nil {
		h.fail(w, r, "create poll", err)
		return
	}

	h.issue(w, r, poll, adminID, req.Name)
}

// Join handles POST /api/polls/join.
func (h *PollHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	poll, participantID, err := h.service.JoinPoll(r.Context(), req.PollID, req.Name)
	if err != nil {
		h.fail(w, r, "join poll", err)
		return
	}

	h.issue(w, r, poll, participantID, req.Name)
}

// Rejoin handles POST /api/polls/rejoin. The identity comes from the bearer token.
func (h *PollHandler) Rejoin(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credential(r)
	if err != nil {
		if websocket.IsCredentialError(err) {
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		h.fail(w, r, "verify token", err)
		return
	}

	poll, err := h.service.RejoinPoll(r.Context(), cred.PollID, cred.ParticipantID, cred.Name)
	if err != nil {
		h.fail(w, r, "rejoin poll", err)
		return
	}

	writeJSON(w, http.StatusOK, PollResponse{Poll: poll})
}

// Get handles GET /api/polls/{id}.
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	if !types.IsValidID(pollID) {
		writeError(w, http.StatusBadRequest, "invalid poll ID")
		return
	}

	poll, err := h.service.GetPoll(r.Context(), pollID)
	if err != nil {
		h.fail(w, r, "get poll", err)
		return
	}

	writeJSON(w, http.StatusOK, PollResponse{Poll: poll, ConnectionCount: h.stats.ConnectionCount(pollID)})
}

func (h *PollHandler) credential(r *http.Request) (*token.Credential, error) {
	raw, err := websocket.BearerToken(r)
	if err != nil {
		return nil, err
	}
	return h.issuer.Verify(raw)
}

func (h *PollHandler) issue(w http.ResponseWriter, r *http.Request, poll *types.Poll, participantID, name string) {
	// the service already accepted the name, so only the trimmed form is needed here
	name, _ = types.ValidateName(name)

	accessToken, err := h.issuer.Issue(poll.ID, participantID, name)
	if err != nil {
		h.fail(w, r, "issue token", err)
		return
	}

	writeJSON(w, http.StatusCreated, CredentialResponse{Poll: poll, AccessToken: accessToken})
}

func (h *PollHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", "request_id", RequestIDFrom(r.Context()), "error", err)
	} else {
		h.logger.Debug(op+" rejected", "request_id", RequestIDFrom(r.Context()), "status", status, "error", err)
	}
	writeError(w, status, message)
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	store HealthChecker
	stats ConnectionStats
	now   func() time.Time
}

func NewHealthHandler(store HealthChecker, stats ConnectionStats) *HealthHandler {
	return &HealthHandler{store: store, stats: stats, now: time.Now}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Timestamp:   h.now(),
		Store:       "ok",
		Hub:         "running",
		Connections: h.stats.Stats(),
	}

	if err := h.store.HealthCheck(ctx); err != nil {
		resp.Store = "error: " + err.Error()
		resp.Status = "degraded"
	}
	if !h.stats.IsRunning() {
		resp.Hub = "stopped"
		resp.Status = "degraded"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
