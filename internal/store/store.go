// Package store persists poll documents with a bounded lifetime and applies
// single-path field writes atomically.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pollranking/pkg/database"
	"pollranking/pkg/interfaces"
	"pollranking/pkg/types"
)

// Supported backends
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a PollStore that can sweep its own expired documents.
type Store interface {
	interfaces.PollStore
	StartCleanupRoutine(interval time.Duration)
}

// Config selects and configures a backend.
type Config struct {
	Driver      string
	SQLite      *database.Config
	PostgresDSN string
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "driver", cfg.Driver)

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(logger), nil
	case DriverSQLite:
		sqliteCfg := cfg.SQLite
		if sqliteCfg == nil {
			sqliteCfg = database.DefaultConfig()
		}
		return NewSQLiteStore(sqliteCfg, logger)
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, ErrMissingDSN
		}
		return OpenPostgres(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// encodeValue renders a field value as JSON for the backends that store text.
func encodeValue(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding field value: %w", err)
	}
	return data, nil
}

// decodePoll turns a stored document back into the aggregate.
func decodePoll(data []byte) (*types.Poll, error) {
	var poll types.Poll
	if err := json.Unmarshal(data, &poll); err != nil {
		return nil, fmt.Errorf("decoding poll document: %w", err)
	}
	poll.Normalize()
	return &poll, nil
}

func writeError(op, pollID string, err error) error {
	return fmt.Errorf("%w: %s poll %s: %w", interfaces.ErrStoreWrite, op, pollID, err)
}

func notFound(pollID string) error {
	return fmt.Errorf("poll %s: %w", pollID, interfaces.ErrSessionNotFound)
}

// cleaner runs a store's Cleanup on a ticker until stopped.
type cleaner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *cleaner) start(interval time.Duration, cleanup func(context.Context) error, logger *slog.Logger) {
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanup(ctx); err != nil {
					logger.Warn("expired poll cleanup failed", "error", err)
				}
			}
		}
	}()
}

// stop is safe to call when start never ran.
func (c *cleaner) stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
}
