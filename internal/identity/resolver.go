// Package identity turns addresses into human-readable names. A lookup never
// fails from the caller's point of view: without a name the raw address is
// returned.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Backend looks up the primary name of an address. An empty name with a nil
// error means the address has no name.
type Backend interface {
	LookupName(ctx context.Context, address string) (string, error)
}

// NameCache caches display strings by lowercase address.
type NameCache struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewNameCache() *NameCache {
	return &NameCache{data: make(map[string]string)}
}

func (c *NameCache) Get(address string) (string, bool) {
	c.mu.RLock()
	name, ok := c.data[strings.ToLower(address)]
	c.mu.RUnlock()
	return name, ok
}

func (c *NameCache) Set(address, name string) {
	c.mu.Lock()
	c.data[strings.ToLower(address)] = name
	c.mu.Unlock()
}

// Resolver tries each backend in order and falls back to the address.
type Resolver struct {
	backends []Backend
	timeout  time.Duration
	cache    *NameCache
	logger   *zap.Logger
}

func NewResolver(backends []Backend, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		backends: backends,
		timeout:  timeout,
		cache:    NewNameCache(),
		logger:   logger,
	}
}

// Resolve returns the first name any backend knows for address, or address
// itself. Backend errors are logged at debug level and never returned.
func (r *Resolver) Resolve(ctx context.Context, address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	if name, ok := r.cache.Get(address); ok {
		return name
	}

	failed := false
	for _, b := range r.backends {
		name, err := r.lookup(ctx, b, address)
		if err != nil {
			failed = true
			r.logger.Debug("identity lookup failed", zap.String("address", address), zap.Error(err))
			continue
		}
		if name != "" {
			r.cache.Set(address, name)
			return name
		}
	}

	if !failed {
		r.cache.Set(address, address)
	}
	return address
}

func (r *Resolver) lookup(ctx context.Context, b Backend, address string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return b.LookupName(ctx, address)
}
