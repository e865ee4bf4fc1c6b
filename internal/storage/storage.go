package storage

import (
	"context"
	"errors"

	"juiceWatch/internal/model"
)

// FailureLog is an append-only sink for failed fetches, enrichments, and
// deliveries. It is written by the pipeline and never read back.
type FailureLog interface {
	AppendFailures(ctx context.Context, records []model.FailureRecord) error
}

// MultiLog fans records out to several logs. Every log is attempted.
type MultiLog []FailureLog

func (m MultiLog) AppendFailures(ctx context.Context, records []model.FailureRecord) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.AppendFailures(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
