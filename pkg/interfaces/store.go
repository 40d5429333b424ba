package interfaces

import (
	"context"
	"time"

	"pollranking/pkg/types"
)

// PollStore is the document store behind the poll service.
// ARCHITECTURAL DISCOVERY: the store only offers single-field atomicity; no operation
// spans a field write and the read that follows it
type PollStore interface {
	// Create writes the document together with its expiry. A poll is never visible
	// without a bounded lifetime.
	Create(ctx context.Context, poll *types.Poll, ttl time.Duration) error

	// Get reads the whole document. Absent or expired documents yield ErrSessionNotFound.
	Get(ctx context.Context, pollID string) (*types.Poll, error)

	// SetField atomically replaces the value at path without rewriting the document.
	SetField(ctx context.Context, pollID string, path types.FieldPath, value any) error

	// DeleteField atomically removes the entry at path. Deleting an absent path is not an error.
	DeleteField(ctx context.Context, pollID string, path types.FieldPath) error

	// Cleanup removes expired documents.
	Cleanup(ctx context.Context) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases background routines and connections.
	Close() error
}
