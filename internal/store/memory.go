package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pollranking/pkg/types"
)

// memoryDoc is a poll kept as a generic JSON tree so field paths can be applied
// without knowing the aggregate's shape.
type memoryDoc struct {
	tree      map[string]any
	expiresAt time.Time
}

// MemoryStore implements Store with an in-process map guarded by one mutex.
// Each write holds the lock for exactly one path, which is the atomicity unit.
type MemoryStore struct {
	mu     sync.RWMutex
	polls  map[string]*memoryDoc
	logger *slog.Logger
	now    func() time.Time

	cleaner cleaner
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		polls:  make(map[string]*memoryDoc),
		logger: logger,
		now:    time.Now,
	}
}

// Create stores the initial document and its expiry together.
func (s *MemoryStore) Create(_ context.Context, poll *types.Poll, ttl time.Duration) error {
	tree, err := toTree(poll)
	if err != nil {
		return writeError("create", poll.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls[poll.ID] = &memoryDoc{tree: tree, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns a decoded copy of the document.
func (s *MemoryStore) Get(_ context.Context, pollID string) (*types.Poll, error) {
	s.mu.RLock()
	doc, ok := s.live(pollID)
	if !ok {
		s.mu.RUnlock()
		return nil, notFound(pollID)
	}
	data, err := json.Marshal(doc.tree)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("encoding poll %s: %w", pollID, err)
	}
	return decodePoll(data)
}

// SetField replaces the value at path, creating intermediate objects as needed.
func (s *MemoryStore) SetField(_ context.Context, pollID string, path types.FieldPath, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	v, err := toJSONValue(value)
	if err != nil {
		return writeError("set field on", pollID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.live(pollID)
	if !ok {
		return notFound(pollID)
	}

	node := doc.tree
	for _, key := range path[:len(path)-1] {
		next, exists := node[key]
		if !exists || next == nil {
			child := make(map[string]any)
			node[key] = child
			node = child
			continue
		}
		child, isObject := next.(map[string]any)
		if !isObject {
			return writeError("set field on", pollID, fmt.Errorf("%w: %s", ErrNotAnObject, path))
		}
		node = child
	}
	node[path[len(path)-1]] = v
	return nil
}

// DeleteField removes the value at path. A missing path is not an error.
func (s *MemoryStore) DeleteField(_ context.Context, pollID string, path types.FieldPath) error {
	if err := path.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.live(pollID)
	if !ok {
		return notFound(pollID)
	}

	node := doc.tree
	for _, key := range path[:len(path)-1] {
		child, isObject := node[key].(map[string]any)
		if !isObject {
			return nil
		}
		node = child
	}
	delete(node, path[len(path)-1])
	return nil
}

// Cleanup removes expired documents.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, doc := range s.polls {
		if !now.Before(doc.expiresAt) {
			delete(s.polls, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("removed expired polls", "count", removed)
	}
	return nil
}

// StartCleanupRoutine sweeps expired documents every interval until Close.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	s.cleaner.start(interval, s.Cleanup, s.logger)
}

// HealthCheck always succeeds for the in-memory backend.
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cleaner.stop()
	return nil
}

// live must be called with s.mu held.
func (s *MemoryStore) live(pollID string) (*memoryDoc, bool) {
	doc, ok := s.polls[pollID]
	if !ok || !s.now().Before(doc.expiresAt) {
		return nil, false
	}
	return doc, true
}

func toTree(poll *types.Poll) (map[string]any, error) {
	data, err := json.Marshal(poll)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// toJSONValue copies value into plain JSON types so stored trees never alias caller data.
func toJSONValue(value any) (any, error) {
	data, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
