package subgraph

import (
	"context"
	"fmt"

	"juiceWatch/internal/model"
)

// Stream adapts one subgraph entity to the pipeline's event source.
type Stream struct {
	name  string
	fetch func(ctx context.Context, since int64) ([]model.Event, error)
}

func (s *Stream) Name() string { return s.name }

// FetchSince returns events newer than since in upstream order.
func (s *Stream) FetchSince(ctx context.Context, since int64) ([]model.Event, error) {
	return s.fetch(ctx, since)
}

// NewStream returns the stream with the given name.
func NewStream(c *Client, name string) (*Stream, error) {
	switch name {
	case model.StreamPayEvents:
		return &Stream{name: name, fetch: func(ctx context.Context, since int64) ([]model.Event, error) {
			events, err := c.PayEventsSince(ctx, since)
			if err != nil {
				return nil, err
			}
			out := make([]model.Event, 0, len(events))
			for _, ev := range events {
				out = append(out, ev)
			}
			return out, nil
		}}, nil
	case model.StreamProjectCreateEvents:
		return &Stream{name: name, fetch: func(ctx context.Context, since int64) ([]model.Event, error) {
			events, err := c.ProjectCreateEventsSince(ctx, since)
			if err != nil {
				return nil, err
			}
			out := make([]model.Event, 0, len(events))
			for _, ev := range events {
				out = append(out, ev)
			}
			return out, nil
		}}, nil
	default:
		return nil, fmt.Errorf("unknown stream %q", name)
	}
}
