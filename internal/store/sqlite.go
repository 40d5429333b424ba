package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pollranking/pkg/database"
	"pollranking/pkg/types"
)

// SQLiteStore keeps each poll as one JSON text column and edits it in place with
// json_set/json_remove, so a field write is a single UPDATE statement.
type SQLiteStore struct {
	db           *sql.DB
	config       *database.Config
	logger       *slog.Logger
	now          func() time.Time
	writeChannel chan writeOperation // single writer avoids SQLITE_BUSY under load
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex

	cleaner cleaner
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewSQLiteStore opens the database, applies the embedded migrations and verifies the schema.
func NewSQLiteStore(config *database.Config, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(config)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrationManager(db, database.Migrations()).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := database.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		config:       config,
		logger:       logger,
		now:          time.Now,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	logger.Info("sqlite poll store ready", "path", config.DatabasePath)
	return s, nil
}

// writeLoop processes all write operations in a single goroutine.
// Failed writes are reported to the caller and never retried.
func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			op.result <- op.operation(s.db)
		case <-s.shutdown:
			s.logger.Debug("sqlite write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (s *SQLiteStore) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(s.config.WriteTimeout)
	defer timer.Stop()

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// Create inserts the document and its expiry in one statement.
func (s *SQLiteStore) Create(ctx context.Context, poll *types.Poll, ttl time.Duration) error {
	doc, err := encodeValue(poll)
	if err != nil {
		return writeError("create", poll.ID, err)
	}
	expiresAt := s.now().Add(ttl).UnixMilli()

	err = s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO polls (id, document, expires_at) VALUES (?, ?, ?)",
			poll.ID, string(doc), expiresAt,
		)
		return err
	})
	if err != nil {
		return writeError("create", poll.ID, err)
	}
	return nil
}

// Get reads the document directly; reads never go through the writer.
func (s *SQLiteStore) Get(ctx context.Context, pollID string) (*types.Poll, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM polls WHERE id = ? AND expires_at > ?",
		pollID, s.now().UnixMilli(),
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(pollID)
		}
		return nil, fmt.Errorf("failed to query poll %s: %w", pollID, err)
	}
	return decodePoll([]byte(doc))
}

// SetField replaces one path with json_set.
func (s *SQLiteStore) SetField(ctx context.Context, pollID string, path types.FieldPath, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return writeError("set field on", pollID, err)
	}

	return s.updateDocument(ctx, pollID, "set field on",
		"UPDATE polls SET document = json_set(document, ?, json(?)) WHERE id = ? AND expires_at > ?",
		jsonPath(path), string(data),
	)
}

// DeleteField removes one path with json_remove; a missing path leaves the document unchanged.
func (s *SQLiteStore) DeleteField(ctx context.Context, pollID string, path types.FieldPath) error {
	if err := path.Validate(); err != nil {
		return err
	}

	return s.updateDocument(ctx, pollID, "delete field on",
		"UPDATE polls SET document = json_remove(document, ?) WHERE id = ? AND expires_at > ?",
		jsonPath(path),
	)
}

// updateDocument runs a single-row UPDATE; zero affected rows means the poll is gone.
func (s *SQLiteStore) updateDocument(ctx context.Context, pollID, op, query string, args ...any) error {
	args = append(args, pollID, s.now().UnixMilli())

	var affected int64
	err := s.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return writeError(op, pollID, err)
	}
	if affected == 0 {
		return notFound(pollID)
	}
	return nil
}

// Cleanup deletes expired documents.
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	now := s.now().UnixMilli()
	return s.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "DELETE FROM polls WHERE expires_at <= ?", now)
		if err != nil {
			return fmt.Errorf("deleting expired polls: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Debug("removed expired polls", "count", n)
		}
		return nil
	})
}

// StartCleanupRoutine sweeps expired documents every interval until Close.
func (s *SQLiteStore) StartCleanupRoutine(interval time.Duration) {
	s.cleaner.start(interval, s.Cleanup, s.logger)
}

// HealthCheck validates connectivity and that the polls table is readable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM polls").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close stops the cleanup and writer goroutines, then closes the pool.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cleaner.stop()
	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// jsonPath renders a validated FieldPath as an SQLite JSON path, e.g. $."participants"."abc".
func jsonPath(path types.FieldPath) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range path {
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String()
}
