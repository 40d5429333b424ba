// Package router turns raw frames into validated inbound messages and fans
// outbound messages out to a poll's broadcast group.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"pollranking/internal/websocket"
	"pollranking/pkg/types"
)

// MaxFrameSize bounds an inbound frame before decoding.
const MaxFrameSize = 4096

// Router decodes inbound frames and delivers outbound ones.
type Router struct {
	registry    *websocket.Registry
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewRouter creates a router over registry with the given rate limiter.
func NewRouter(registry *websocket.Registry, rateLimiter *RateLimiter, logger *slog.Logger) *Router {
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(DefaultRateLimit, DefaultRateWindow)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:    registry,
		rateLimiter: rateLimiter,
		logger:      logger.With("component", "router"),
	}
}

// Decode rate-limits the sender, then parses and validates one frame.
// Unknown fields are ignored; unknown message types are rejected.
func (r *Router) Decode(participantID string, data []byte) (*types.InboundMessage, error) {
	if !r.rateLimiter.Allow(participantID) {
		return nil, ErrRateLimitExceeded
	}
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	var msg types.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, ErrMalformedFrame
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Broadcast writes v to every connection in pollID's group and returns how many accepted it.
// A failed write to one member never blocks delivery to the others.
func (r *Router) Broadcast(pollID string, v interface{}) int {
	delivered := 0
	for _, conn := range r.registry.GetPollConnections(pollID) {
		if err := conn.WriteJSON(v); err != nil {
			r.logger.Debug("broadcast write failed",
				"poll_id", pollID, "participant_id", conn.GetParticipantID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Unicast writes v to a single connection.
func (r *Router) Unicast(conn *websocket.Connection, v interface{}) {
	if err := conn.WriteJSON(v); err != nil {
		r.logger.Debug("unicast write failed", "participant_id", conn.GetParticipantID(), "error", err)
	}
}

// Forget releases per-participant state after a disconnect.
func (r *Router) Forget(participantID string) {
	r.rateLimiter.Forget(participantID)
}

// StartCleanup sweeps idle rate-limit entries until ctx is done.
func (r *Router) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.rateLimiter.Cleanup()
			}
		}
	}()
}
