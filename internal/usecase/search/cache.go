package search

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/s2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

type cacheEntry struct {
	data        []byte // s2-compressed JSON
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
	size        int
}

// responseCache memoizes full search responses. Entries expire by TTL on a
// periodic sweep; if the cache still exceeds the entry bound after the TTL
// purge, least-recently-accessed entries go next.
type responseCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger

	now func() time.Time
}

func newResponseCache(ttl time.Duration, maxEntries int, logger *zap.Logger) *responseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &responseCache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// get returns the cached response and its age. Expired entries miss even
// before the sweep collects them.
func (c *responseCache) get(key string) (domain.SearchResponse, time.Duration, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()
		return domain.SearchResponse{}, 0, false
	}

	now := c.now()
	age := now.Sub(entry.createdAt)
	if age > c.ttl {
		delete(c.entries, key)
		c.mu.Unlock()
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()
		return domain.SearchResponse{}, 0, false
	}

	entry.lastAccess = now
	entry.accessCount++
	data := entry.data
	c.mu.Unlock()

	resp, err := decodeResponse(data)
	if err != nil {
		c.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()
		return domain.SearchResponse{}, 0, false
	}

	metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
	return resp, age, true
}

func (c *responseCache) put(key string, resp domain.SearchResponse) {
	data, err := encodeResponse(resp)
	if err != nil {
		c.logger.Warn("Failed to encode response for cache", zap.Error(err))
		return
	}

	now := c.now()
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		data:       data,
		createdAt:  now,
		lastAccess: now,
		size:       len(data),
	}
	if len(c.entries) > c.maxEntries {
		c.evictLocked(now)
	}
	c.mu.Unlock()
}

// evictLocked purges expired entries, then trims by least-recent access
// until back under the bound. Caller holds c.mu.
func (c *responseCache) evictLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyed struct {
		key  string
		last time.Time
	}
	byAccess := make([]keyed, 0, len(c.entries))
	for key, entry := range c.entries {
		byAccess = append(byAccess, keyed{key: key, last: entry.lastAccess})
	}
	sort.Slice(byAccess, func(i, j int) bool {
		return byAccess[i].last.Before(byAccess[j].last)
	})

	for _, k := range byAccess {
		if len(c.entries) <= c.maxEntries {
			break
		}
		delete(c.entries, k.key)
	}
}

// startSweep runs the periodic TTL purge until ctx is done.
func (c *responseCache) startSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				c.evictLocked(c.now())
				c.mu.Unlock()
			}
		}
	}()
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func encodeResponse(resp domain.SearchResponse) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err //nolint:wrapcheck // internal codec
	}
	return s2.Encode(nil, raw), nil
}

func decodeResponse(data []byte) (domain.SearchResponse, error) {
	raw, err := s2.Decode(nil, data)
	if err != nil {
		return domain.SearchResponse{}, err //nolint:wrapcheck // internal codec
	}
	var resp domain.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.SearchResponse{}, err //nolint:wrapcheck // internal codec
	}
	return resp, nil
}
