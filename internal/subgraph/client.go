// Package subgraph fetches Juicebox events from a GraphQL indexing endpoint.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/retry"
)

// ErrMalformedResponse is returned when the body is not the expected shape.
var ErrMalformedResponse = errors.New("malformed subgraph response")

// QueryError carries the GraphQL errors array of a response.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "subgraph query failed: " + strings.Join(e.Messages, "; ")
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subgraph returned status %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	Retry      retry.Policy
	PageSize   int
	HTTPClient *http.Client
}

// Client posts GraphQL queries to the subgraph endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	retry      retry.Policy
	pageSize   int
	logger     *zap.Logger
}

func NewClient(url string, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
		retry:      opts.Retry,
		pageSize:   pageSize,
		logger:     logger,
	}
}

type request struct {
	Query string `json:"query"`
}

type response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs a GraphQL query and returns the raw value of data.<field>.
// Transport failures and 5xx responses are retried; everything else is final.
func (c *Client) Query(ctx context.Context, query, field string) (json.RawMessage, error) {
	body, err := jsoncodec.Marshal(request{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var raw json.RawMessage
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		raw, err = c.post(ctx, body, field)
		if err != nil {
			c.logger.Warn("subgraph query failed", zap.String("field", field), zap.Error(err))
		}
		return err
	})
	return raw, err
}

func (c *Client) post(ctx context.Context, body []byte, field string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post query: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: truncate(string(payload), 256)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, retry.Permanent(statusErr)
	}

	var decoded response
	if err := jsoncodec.Unmarshal(payload, &decoded); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if len(decoded.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range decoded.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return nil, retry.Permanent(qe)
	}

	raw, ok := decoded.Data[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, retry.Permanent(fmt.Errorf("%w: missing data.%s", ErrMalformedResponse, field))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
