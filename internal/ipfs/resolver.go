// Package ipfs resolves content-addressed project metadata through an HTTP
// gateway.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/model"
)

// ErrNotFound is returned when the gateway has no content for a CID.
var ErrNotFound = errors.New("ipfs content not found")

// MetadataCache caches resolved metadata by CID for the lifetime of a run.
type MetadataCache struct {
	mu   sync.RWMutex
	data map[string]model.ProjectMetadata
}

func NewMetadataCache() *MetadataCache {
	return &MetadataCache{data: make(map[string]model.ProjectMetadata)}
}

func (c *MetadataCache) Get(cid string) (model.ProjectMetadata, bool) {
	c.mu.RLock()
	meta, ok := c.data[cid]
	c.mu.RUnlock()
	return meta, ok
}

func (c *MetadataCache) Set(cid string, meta model.ProjectMetadata) {
	c.mu.Lock()
	c.data[cid] = meta
	c.mu.Unlock()
}

// Resolver fetches metadata documents from a gateway.
type Resolver struct {
	gateway    string
	httpClient *http.Client
	cache      *MetadataCache
	group      singleflight.Group
	logger     *zap.Logger
}

func NewResolver(gateway string, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		gateway:    strings.TrimRight(gateway, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      NewMetadataCache(),
		logger:     logger,
	}
}

// CID strips ipfs:// and /ipfs/ prefixes from a content reference.
func CID(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "ipfs://")
	ref = strings.TrimPrefix(ref, "/ipfs/")
	ref = strings.TrimPrefix(ref, "ipfs/")
	return ref
}

// GatewayURL returns the gateway URL for the last path segment of ref.
// Logo references are stored as full URLs on older projects.
func GatewayURL(gateway, ref string) string {
	if ref == "" {
		return ""
	}
	cid := ref[strings.LastIndex(ref, "/")+1:]
	return strings.TrimRight(gateway, "/") + "/ipfs/" + cid
}

// Resolve returns the metadata document for ref. An empty reference yields
// empty metadata so callers fall back to a synthesized project label.
func (r *Resolver) Resolve(ctx context.Context, ref string) (model.ProjectMetadata, error) {
	cid := CID(ref)
	if cid == "" {
		return model.ProjectMetadata{}, nil
	}
	if meta, ok := r.cache.Get(cid); ok {
		return meta, nil
	}

	v, err, _ := r.group.Do(cid, func() (interface{}, error) {
		if meta, ok := r.cache.Get(cid); ok {
			return meta, nil
		}
		meta, err := r.fetch(ctx, cid)
		if err != nil {
			return model.ProjectMetadata{}, err
		}
		r.cache.Set(cid, meta)
		return meta, nil
	})
	if err != nil {
		return model.ProjectMetadata{}, err
	}
	return v.(model.ProjectMetadata), nil
}

func (r *Resolver) fetch(ctx context.Context, cid string) (model.ProjectMetadata, error) {
	url := r.gateway + "/ipfs/" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("get %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.ProjectMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ProjectMetadata{}, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, cid)
	}

	var meta model.ProjectMetadata
	if err := jsoncodec.Decode(io.LimitReader(resp.Body, 1<<20), &meta); err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("parse metadata %s: %w", cid, err)
	}

	r.logger.Debug("metadata resolved", zap.String("cid", cid), zap.String("name", meta.Name))
	return meta, nil
}
