// Package watermark persists, per stream, the timestamp at or below which
// every event has already been notified.
package watermark

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt is returned when persisted state exists but cannot be parsed.
var ErrCorrupt = errors.New("watermark state is corrupt")

// Store loads watermarks at run start and saves them once at run end.
type Store interface {
	// Load returns a watermark for every known stream, seeding missing
	// streams to the current time.
	Load(ctx context.Context) (map[string]int64, error)
	// Save replaces the persisted state atomically.
	Save(ctx context.Context, marks map[string]int64) error
}

// Seed fills in every stream absent from marks with now. A fresh install
// therefore only watches events that happen after its first run.
func Seed(marks map[string]int64, streams []string, now time.Time) map[string]int64 {
	out := make(map[string]int64, len(streams)+len(marks))
	for stream, ts := range marks {
		out[stream] = ts
	}
	for _, stream := range streams {
		if _, ok := out[stream]; !ok {
			out[stream] = now.Unix()
		}
	}
	return out
}
