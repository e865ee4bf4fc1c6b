// Package discord delivers notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/model"
	"juiceWatch/internal/retry"
)

// ErrRateLimited is wrapped by deliveries that end on a 429.
var ErrRateLimited = errors.New("discord rate limited")

// StatusError is a non-2xx webhook response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.Code, e.Body)
}

type embed struct {
	model.Notification
	Color int `json:"color"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
}

// Sink posts one embed per notification.
type Sink struct {
	url        string
	httpClient *http.Client
	retry      retry.Policy
	color      func() int
	logger     *zap.Logger
}

func NewSink(url string, timeout time.Duration, policy retry.Policy, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry:      policy,
		color:      randomColor,
		logger:     logger,
	}
}

func randomColor() int {
	return rand.IntN(0xFFFFFF + 1)
}

// Deliver posts n and reports whether the webhook accepted it. 429 and 5xx
// responses are retried within the sink's policy.
func (s *Sink) Deliver(ctx context.Context, n model.Notification) error {
	if s.url == "" {
		return fmt.Errorf("webhook url is required")
	}
	if n.Fields == nil {
		n.Fields = []model.Field{}
	}

	body, err := jsoncodec.Marshal(payload{Embeds: []embed{{Notification: n, Color: s.color()}}})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		err := s.post(ctx, body)
		if err != nil {
			s.logger.Debug("webhook attempt failed", zap.String("title", n.Title), zap.Error(err))
		}
		return err
	})
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	statusErr := &StatusError{Code: resp.StatusCode, Body: string(raw)}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retry.Delayed{
			Err:   fmt.Errorf("%w: %w", ErrRateLimited, statusErr),
			After: retryAfter(resp.Header, raw),
		}
	case resp.StatusCode >= 500:
		return statusErr
	default:
		return retry.Permanent(statusErr)
	}
}

// retryAfter reads the wait from the JSON body, then the Retry-After header.
func retryAfter(h http.Header, body []byte) time.Duration {
	var rl rateLimitBody
	if err := jsoncodec.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}
