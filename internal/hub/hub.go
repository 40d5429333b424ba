// Package hub is the real-time coordinator: it admits connections into their
// poll's broadcast group, applies their actions and fans out fresh snapshots.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pollranking/internal/guard"
	"pollranking/internal/router"
	"pollranking/internal/websocket"
	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

// Hub implements websocket.Coordinator.
// Work for one connection arrives sequentially from its read pump; different
// connections run concurrently and only meet in the store and the registry.
type Hub struct {
	registry *websocket.Registry
	router   *router.Router
	service  interfaces.PollService
	logger   *slog.Logger

	running bool
	cancel  context.CancelFunc
	mu      sync.RWMutex
}

var _ websocket.Coordinator = (*Hub)(nil)

// NewHub wires the coordinator to its collaborators.
func NewHub(registry *websocket.Registry, router *router.Router, service interfaces.PollService, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		router:   router,
		service:  service,
		logger:   logger.With("component", "hub"),
	}
}

// Start enables admission and begins background rate-limit cleanup.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.running = true
	h.router.StartCleanup(ctx, time.Minute)

	h.logger.Info("hub started")
	return nil
}

// Stop refuses new work and closes every admitted connection.
// Connections released after Stop leave their poll documents untouched.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	h.cancel()
	h.mu.Unlock()

	conns := h.registry.AllConnections()
	for _, conn := range conns {
		_ = conn.Close()
	}

	h.logger.Info("hub stopped", "closed_connections", len(conns))
	return nil
}

// IsRunning reports whether the hub is accepting work.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// ConnectionCount returns how many connections are in pollID's broadcast group.
func (h *Hub) ConnectionCount(pollID string) int {
	return h.registry.ConnectionCount(pollID)
}

// Stats exposes registry statistics for health reporting.
func (h *Hub) Stats() map[string]int {
	return h.registry.GetStats()
}

// Admit joins conn to its broadcast group, records the participant and
// broadcasts the snapshot to the whole group, the new connection included.
func (h *Hub) Admit(ctx context.Context, conn *websocket.Connection) error {
	if !h.IsRunning() {
		_ = conn.CloseWithMessage(types.NewException(types.ExceptionInternal, "server is shutting down"))
		return ErrHubNotRunning
	}

	pollID := conn.GetPollID()
	participantID := conn.GetParticipantID()

	if err := h.registry.RegisterConnection(conn); err != nil {
		_ = conn.CloseWithMessage(types.NewException(types.ExceptionInternal, "connection could not be registered"))
		return err
	}

	poll, err := h.service.AddParticipant(ctx, pollID, participantID, conn.GetName())
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			h.evict(pollID)
			return err
		}
		h.registry.UnregisterConnection(conn)
		_ = conn.CloseWithMessage(exceptionFor(err))
		h.logger.Warn("admission failed", "poll_id", pollID, "participant_id", participantID, "error", err)
		return err
	}

	h.logger.Info("participant connected", "poll_id", pollID, "participant_id", participantID)
	h.router.Broadcast(pollID, types.NewPollUpdated(poll))
	return nil
}

// Dispatch handles one inbound frame from an admitted connection.
func (h *Hub) Dispatch(ctx context.Context, conn *websocket.Connection, data []byte) {
	pollID := conn.GetPollID()
	participantID := conn.GetParticipantID()

	if !h.IsRunning() {
		return
	}

	msg, err := h.router.Decode(participantID, data)
	if err != nil {
		h.logger.Debug("frame rejected", "poll_id", pollID, "participant_id", participantID, "error", err)
		h.router.Unicast(conn, exceptionFor(err))
		return
	}

	current, err := h.service.GetPoll(ctx, pollID)
	if err != nil {
		h.fail(conn, err)
		return
	}
	if err := authorize(msg.Type, participantID, current); err != nil {
		h.logger.Info("action denied", "poll_id", pollID, "participant_id", participantID, "action", msg.Type, "error", err)
		h.router.Unicast(conn, exceptionFor(err))
		return
	}

	poll, changed, err := h.apply(ctx, pollID, participantID, msg)
	if err != nil {
		h.fail(conn, err)
		return
	}
	if changed {
		h.router.Broadcast(pollID, types.NewPollUpdated(poll))
	}
}

// authorize applies the guard, and only lets current participants nominate so every
// nomination owner is in participants when the nomination is written.
func authorize(action, participantID string, current *types.Poll) error {
	if err := guard.Check(action, participantID, current); err != nil {
		return err
	}
	if action == types.MessageTypeNominate {
		if _, ok := current.Participants[participantID]; !ok {
			return ErrNotParticipant
		}
	}
	return nil
}

func (h *Hub) apply(ctx context.Context, pollID, participantID string, msg *types.InboundMessage) (*types.Poll, bool, error) {
	switch msg.Type {
	case types.MessageTypeNominate:
		poll, nominationID, err := h.service.AddNomination(ctx, pollID, participantID, msg.Text)
		if err == nil {
			h.logger.Debug("nomination added", "poll_id", pollID, "nomination_id", nominationID)
		}
		return poll, err == nil, err
	case types.MessageTypeRemoveNomination:
		poll, err := h.service.RemoveNomination(ctx, pollID, msg.ID)
		return poll, err == nil, err
	case types.MessageTypeRemoveParticipant:
		return h.service.RemoveParticipant(ctx, pollID, msg.ID)
	default:
		return nil, false, ErrUnknownAction
	}
}

// Release drops conn from its group and, if it was still the participant's live
// connection, removes the participant and broadcasts unless that was a no-op.
func (h *Hub) Release(ctx context.Context, conn *websocket.Connection) {
	pollID := conn.GetPollID()
	participantID := conn.GetParticipantID()

	if !h.registry.UnregisterConnection(conn) {
		return
	}
	h.router.Forget(participantID)

	if !h.IsRunning() {
		return
	}

	poll, changed, err := h.service.RemoveParticipant(ctx, pollID, participantID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			h.evict(pollID)
			return
		}
		h.logger.Warn("failed to remove disconnected participant", "poll_id", pollID, "participant_id", participantID, "error", err)
		return
	}

	h.logger.Info("participant disconnected", "poll_id", pollID, "participant_id", participantID, "removed", changed)
	if changed {
		h.router.Broadcast(pollID, types.NewPollUpdated(poll))
	}
}

// fail reports err to the acting connection; an expired poll evicts the whole group.
func (h *Hub) fail(conn *websocket.Connection, err error) {
	if errors.Is(err, interfaces.ErrSessionNotFound) {
		h.evict(conn.GetPollID())
		return
	}
	h.logger.Warn("action failed", "poll_id", conn.GetPollID(), "participant_id", conn.GetParticipantID(), "error", err)
	h.router.Unicast(conn, exceptionFor(err))
}

// evict tells every member of pollID's group the session is gone and closes them.
func (h *Hub) evict(pollID string) {
	conns := h.registry.DropPoll(pollID)
	msg := types.NewException(types.ExceptionSessionExpired, "poll session has expired")
	for _, conn := range conns {
		if err := conn.CloseWithMessage(msg); err != nil {
			_ = conn.Close()
		}
	}
	h.logger.Info("poll session expired, group evicted", "poll_id", pollID, "connections", len(conns))
}

// exceptionFor maps an error onto the exception kind a client sees.
func exceptionFor(err error) *types.ExceptionMessage {
	switch {
	case errors.Is(err, router.ErrRateLimitExceeded):
		return types.NewException(types.ExceptionRateLimited, "too many messages, slow down")
	case errors.Is(err, interfaces.ErrDenied):
		return types.NewException(types.ExceptionUnauthorized, err.Error())
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return types.NewException(types.ExceptionSessionExpired, "poll session has expired")
	case errors.Is(err, interfaces.ErrInvalidInput):
		return types.NewException(types.ExceptionBadRequest, err.Error())
	default:
		return types.NewException(types.ExceptionInternal, "internal error")
	}
}
