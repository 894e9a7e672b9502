package gadm

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/globicephala/sdm/internal/domain"
)

// CachedProvider wraps a CoastlineProvider with an in-memory LRU cache.
// Country boundaries never change mid-run, so a hit is always valid, and
// the exploratory and seasonal maps share one fetch per country.
type CachedProvider struct {
	inner domain.CoastlineProvider
	cache *lruCache
}

// NewCachedProvider creates a cache decorator around a coastline provider.
func NewCachedProvider(inner domain.CoastlineProvider, maxEntries int) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedProvider) FetchCoastline(ctx context.Context, iso string, level int) (domain.Coastline, error) {
	key := fmt.Sprintf("%s|%d", iso, level)
	if result, ok := c.cache.get(key); ok {
		return result, nil
	}
	result, err := c.inner.FetchCoastline(ctx, iso, level)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient failures can be retried.
	if len(result.Polygons) > 0 {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a small thread-safe LRU keyed by country+level, built on
// container/list: the list front is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	index      map[string]*list.Element
}

type entry struct {
	key   string
	value domain.Coastline
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.Coastline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return domain.Coastline{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value domain.Coastline) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.index[key] = c.order.PushFront(&entry{key: key, value: value})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).key)
	}
}
