package offset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSeenOffsetsTable = `
	CREATE TABLE IF NOT EXISTS seen_offsets (
		topic        TEXT        NOT NULL,
		queue_id     INTEGER     NOT NULL,
		queue_offset BIGINT      NOT NULL,
		seen_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (topic, queue_id, queue_offset)
	)
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore records seen offsets in a table keyed by queue position.
type PostgresStore struct {
	db     execer
	closer func()
}

func NewPostgresStore(db execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgresStore opens a pool, verifies it and creates the table.
func ConnectPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	s.closer = pool.Close
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSeenOffsetsTable); err != nil {
		return fmt.Errorf("create seen_offsets: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkSeen(ctx context.Context, key Key) (bool, error) {
	const query = `
		INSERT INTO seen_offsets (topic, queue_id, queue_offset)
		VALUES ($1, $2, $3)
		ON CONFLICT (topic, queue_id, queue_offset) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, key.Topic, key.QueueID, key.Offset)
	if err != nil {
		return false, fmt.Errorf("insert seen offset %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
