// Package retry runs transport calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitExceeded is returned when a server asks for a longer wait than the
// policy allows.
var ErrWaitExceeded = errors.New("requested retry wait exceeds limit")

// Policy bounds the number of attempts and the delay between them.
// MaxWait caps any single wait; zero means no cap.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxWait    time.Duration
}

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Delayed wraps err with a server-requested wait before the next attempt.
type Delayed struct {
	Err   error
	After time.Duration
}

func (d *Delayed) Error() string { return d.Err.Error() }
func (d *Delayed) Unwrap() error { return d.Err }

// Do calls fn until it succeeds, returns a permanent error, or the policy is
// exhausted. The delay doubles after each failed attempt.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.Backoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= maxRetries {
			return err
		}

		wait := delay
		var delayed *Delayed
		if errors.As(err, &delayed) && delayed.After > 0 {
			if p.MaxWait > 0 && delayed.After > p.MaxWait {
				return fmt.Errorf("%w (%s > %s): %w", ErrWaitExceeded, delayed.After, p.MaxWait, err)
			}
			wait = delayed.After
		}
		if p.MaxWait > 0 && wait > p.MaxWait {
			wait = p.MaxWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
