package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"pollranking/pkg/types"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const pollsTable = "polls"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS polls (
    id          TEXT PRIMARY KEY,
    document    JSONB NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_polls_expires_at ON polls(expires_at);
`

// PostgresStore keeps each poll as a JSONB document and edits it with jsonb_set and #-.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	cleaner cleaner
}

// OpenPostgres connects with lib/pq and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := NewPostgresStore(db, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema creates the polls table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating polls schema: %w", err)
	}
	return nil
}

// Create inserts the document and its expiry in one statement.
func (s *PostgresStore) Create(ctx context.Context, poll *types.Poll, ttl time.Duration) error {
	doc, err := encodeValue(poll)
	if err != nil {
		return writeError("create", poll.ID, err)
	}

	query, args, err := psq.Insert(pollsTable).
		Columns("id", "document", "expires_at").
		Values(poll.ID, string(doc), time.Now().Add(ttl)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return writeError("create", poll.ID, err)
	}
	return nil
}

// Get returns the live document.
func (s *PostgresStore) Get(ctx context.Context, pollID string) (*types.Poll, error) {
	query, args, err := psq.Select("document").
		From(pollsTable).
		Where(sq.Eq{"id": pollID}).
		Where("expires_at > NOW()").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	var doc []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(pollID)
		}
		return nil, fmt.Errorf("querying poll %s: %w", pollID, err)
	}
	return decodePoll(doc)
}

// SetField replaces one path with jsonb_set.
func (s *PostgresStore) SetField(ctx context.Context, pollID string, path types.FieldPath, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return writeError("set field on", pollID, err)
	}

	return s.updateDocument(ctx, pollID, "set field on",
		sq.Expr("jsonb_set(document, ?::text[], ?::jsonb, true)", pq.Array([]string(path)), string(data)))
}

// DeleteField removes one path with #-; a missing path leaves the document unchanged.
func (s *PostgresStore) DeleteField(ctx context.Context, pollID string, path types.FieldPath) error {
	if err := path.Validate(); err != nil {
		return err
	}

	return s.updateDocument(ctx, pollID, "delete field on",
		sq.Expr("document #- ?::text[]", pq.Array([]string(path))))
}

func (s *PostgresStore) updateDocument(ctx context.Context, pollID, op string, expr sq.Sqlizer) error {
	query, args, err := psq.Update(pollsTable).
		Set("document", expr).
		Where(sq.Eq{"id": pollID}).
		Where("expires_at > NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(op, pollID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeError(op, pollID, err)
	}
	if affected == 0 {
		return notFound(pollID)
	}
	return nil
}

// Cleanup removes expired documents.
func (s *PostgresStore) Cleanup(ctx context.Context) error {
	query, args, err := psq.Delete(pollsTable).Where("expires_at <= NOW()").ToSql()
	if err != nil {
		return fmt.Errorf("building cleanup: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cleaning up expired polls: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("removed expired polls", "count", n)
	}
	return nil
}

// StartCleanupRoutine sweeps expired documents every interval until Close.
func (s *PostgresStore) StartCleanupRoutine(interval time.Duration) {
	s.cleaner.start(interval, s.Cleanup, s.logger)
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close stops the cleanup routine and closes the pool.
func (s *PostgresStore) Close() error {
	s.cleaner.stop()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing postgres: %w", err)
	}
	return nil
}
