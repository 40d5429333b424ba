package websocket

import (
	"log/slog"
	"sync"
)

// Registry tracks admitted connections grouped by poll.
// A participant has at most one live connection per poll; a reconnect replaces the old one.
type Registry struct {
	mu     sync.RWMutex
	polls  map[string]map[string]*Connection // pollID -> participantID -> Connection
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		polls:  make(map[string]map[string]*Connection),
		logger: logger,
	}
}

// RegisterConnection adds conn to its poll's broadcast group.
// An earlier connection for the same participant is closed asynchronously.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	pollID := conn.GetPollID()
	participantID := conn.GetParticipantID()

	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.polls[pollID]
	if group == nil {
		group = make(map[string]*Connection)
		r.polls[pollID] = group
	}

	if existing, ok := group[participantID]; ok && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				r.logger.Debug("failed to close replaced connection", "poll_id", pollID, "participant_id", participantID, "error", err)
			}
		}()
	}
	group[participantID] = conn

	return nil
}

// UnregisterConnection removes conn if it is still the registered connection for
// its participant. It reports whether anything was removed.
func (r *Registry) UnregisterConnection(conn *Connection) bool {
	if conn == nil {
		return false
	}

	pollID := conn.GetPollID()
	participantID := conn.GetParticipantID()

	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.polls[pollID]
	if !ok {
		return false
	}
	if registered, ok := group[participantID]; !ok || registered != conn {
		return false
	}

	delete(group, participantID)
	if len(group) == 0 {
		delete(r.polls, pollID)
	}
	return true
}

// GetPollConnections returns a snapshot of the broadcast group for pollID.
func (r *Registry) GetPollConnections(pollID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.polls[pollID]
	connections := make([]*Connection, 0, len(group))
	for _, conn := range group {
		connections = append(connections, conn)
	}
	return connections
}

// DropPoll removes and returns every connection of pollID.
func (r *Registry) DropPoll(pollID string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.polls[pollID]
	delete(r.polls, pollID)

	connections := make([]*Connection, 0, len(group))
	for _, conn := range group {
		connections = append(connections, conn)
	}
	return connections
}

// AllConnections returns every registered connection.
func (r *Registry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, group := range r.polls {
		for _, conn := range group {
			connections = append(connections, conn)
		}
	}
	return connections
}

// ConnectionCount returns the size of pollID's broadcast group.
func (r *Registry) ConnectionCount(pollID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.polls[pollID])
}

// GetStats returns registry statistics for monitoring.
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, group := range r.polls {
		total += len(group)
	}
	return map[string]int{
		"total_connections": total,
		"active_polls":      len(r.polls),
	}
}
