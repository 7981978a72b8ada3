package locator

import (
	"context"
	stderrors "errors"
	"fmt"

	"modpack/internal/shared/observability"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cachedResource struct {
	data    []byte
	missing bool
}

// CachedIndex memoizes another index, misses included. Callers get their own
// copy of the bytes.
type CachedIndex struct {
	next  ResourceIndex
	cache *lru.Cache[string, cachedResource]
}

func NewCachedIndex(next ResourceIndex, size int) (*CachedIndex, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, cachedResource](size)
	if err != nil {
		return nil, fmt.Errorf("init resource cache: %w", err)
	}
	return &CachedIndex{next: next, cache: cache}, nil
}

func (c *CachedIndex) Get(ctx context.Context, distribution, resource string) ([]byte, error) {
	key := distribution + ":" + resource
	if hit, ok := c.cache.Get(key); ok {
		observability.ResourceCacheHits.Inc()
		if hit.missing {
			return nil, ErrResourceNotFound
		}
		return append([]byte{}, hit.data...), nil
	}
	observability.ResourceCacheMisses.Inc()

	data, err := c.next.Get(ctx, distribution, resource)
	switch {
	case stderrors.Is(err, ErrResourceNotFound):
		c.cache.Add(key, cachedResource{missing: true})
		return nil, ErrResourceNotFound
	case err != nil:
		return nil, err
	}
	c.cache.Add(key, cachedResource{data: append([]byte{}, data...)})
	return data, nil
}

// Purge drops every cached entry, e.g. after the collection tree changed.
func (c *CachedIndex) Purge() {
	c.cache.Purge()
}

func (c *CachedIndex) Len() int {
	return c.cache.Len()
}
