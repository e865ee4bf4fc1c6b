package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"juiceWatch/internal/jsoncodec"
)

// APIBackend queries an HTTP ENS reverse-lookup service that answers
// GET /ens/resolve/<address> with {"name": ...}.
type APIBackend struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIBackend(baseURL string, timeout time.Duration) *APIBackend {
	return &APIBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Name *string `json:"name"`
}

func (b *APIBackend) LookupName(ctx context.Context, address string) (string, error) {
	url := b.baseURL + "/ens/resolve/" + address
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ens api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var decoded apiResponse
	if err := jsoncodec.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if decoded.Name == nil {
		return "", nil
	}
	return *decoded.Name, nil
}
