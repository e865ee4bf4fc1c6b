// Package pipeline fetches new events per stream, enriches and delivers each
// one independently, and advances the stream watermark only over events whose
// delivery succeeded.
package pipeline

import (
	"context"

	"juiceWatch/internal/model"
)

// Source fetches the events of one stream newer than a watermark.
type Source interface {
	Name() string
	FetchSince(ctx context.Context, since int64) ([]model.Event, error)
}

// MetadataResolver dereferences a project metadata reference. Errors fail
// the event being enriched.
type MetadataResolver interface {
	Resolve(ctx context.Context, ref string) (model.ProjectMetadata, error)
}

// IdentityResolver returns a display string for an address and never fails.
type IdentityResolver interface {
	Resolve(ctx context.Context, address string) string
}

// Formatter builds the notification for an enriched event.
type Formatter interface {
	Build(ev model.EnrichedEvent) (model.Notification, error)
}

// Sink delivers one notification. A nil error means the channel accepted it.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Status is the terminal state of a single event within a run.
type Status int

const (
	StatusDelivered Status = iota
	StatusEnrichFailed
	StatusDeliverFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusEnrichFailed:
		return "enrich_failed"
	case StatusDeliverFailed:
		return "deliver_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one event.
type Outcome struct {
	Event  model.Event
	Status Status
	Err    error
}

// StreamResult is what a stream processor hands back to the orchestrator.
type StreamResult struct {
	Stream    string
	Prior     int64
	Watermark int64
	Outcomes  []Outcome
	// Err is set when the fetch failed; Watermark then equals Prior.
	Err error
}

// Count returns how many outcomes ended in status s.
func (r StreamResult) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
