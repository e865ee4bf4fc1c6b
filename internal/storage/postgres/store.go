package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"juiceWatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifier_watermarks (
	stream     TEXT PRIMARY KEY,
	watermark  BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS notifier_failures (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	stream     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	tx_hash    TEXT,
	event_ts   BIGINT,
	error      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for watermarks and failures.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the notifier tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadWatermarks returns every persisted stream watermark.
func (s *Store) LoadWatermarks(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT stream, watermark FROM notifier_watermarks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make(map[string]int64)
	for rows.Next() {
		var stream string
		var ts int64
		if err := rows.Scan(&stream, &ts); err != nil {
			return nil, err
		}
		marks[stream] = ts
	}
	return marks, rows.Err()
}

// SaveWatermarks upserts all streams in a single transaction. GREATEST keeps
// the stored value monotonic even if a stale run saves late.
func (s *Store) SaveWatermarks(ctx context.Context, marks map[string]int64) error {
	if len(marks) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for stream, ts := range marks {
			batch.Queue(`
				INSERT INTO notifier_watermarks (stream, watermark, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (stream) DO UPDATE
				SET watermark = GREATEST(notifier_watermarks.watermark, EXCLUDED.watermark),
					updated_at = now()
			`, stream, ts)
		}

		br := tx.SendBatch(ctx, batch)
		for range marks {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
}

// AppendFailures inserts failure records.
func (s *Store) AppendFailures(ctx context.Context, records []model.FailureRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO notifier_failures (run_id, stream, stage, tx_hash, event_ts, error)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0), $6)
		`, r.RunID, r.Stream, r.Stage, r.TxHash, r.Timestamp, r.Error)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
