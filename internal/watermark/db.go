package watermark

import (
	"context"
	"fmt"
	"time"
)

// DBBackend is the subset of the Postgres store used for watermarks.
type DBBackend interface {
	LoadWatermarks(ctx context.Context) (map[string]int64, error)
	SaveWatermarks(ctx context.Context, marks map[string]int64) error
}

// DBStore keeps watermarks in the notifier_watermarks table.
type DBStore struct {
	backend DBBackend
	streams []string
	now     func() time.Time
}

func NewDBStore(backend DBBackend, streams []string) *DBStore {
	return &DBStore{backend: backend, streams: streams, now: time.Now}
}

func (s *DBStore) Load(ctx context.Context) (map[string]int64, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("watermark backend is nil")
	}
	marks, err := s.backend.LoadWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watermarks: %w", err)
	}
	return Seed(marks, s.streams, s.now()), nil
}

// Save upserts every stream in one transaction.
func (s *DBStore) Save(ctx context.Context, marks map[string]int64) error {
	if s.backend == nil {
		return fmt.Errorf("watermark backend is nil")
	}
	if err := s.backend.SaveWatermarks(ctx, marks); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}
	return nil
}
