package mapbox

import (
	"context"
	"sync"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
)

// Store holds suggestion lists by key. Implementations treat backend
// failures as misses.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.PlaceSuggestion, bool)
	Put(ctx context.Context, key string, value []domain.PlaceSuggestion)
}

// CachedSuggester wraps a Suggester with a Store.
type CachedSuggester struct {
	inner   domain.Suggester
	store   Store
	metrics *observability.Metrics
}

// NewCachedSuggester creates a cache decorator around a suggester.
func NewCachedSuggester(inner domain.Suggester, store Store, metrics *observability.Metrics) *CachedSuggester {
	return &CachedSuggester{
		inner:   inner,
		store:   store,
		metrics: metrics,
	}
}

func (c *CachedSuggester) Suggest(ctx context.Context, query string) ([]domain.PlaceSuggestion, error) {
	key := "sug:" + query
	if result, ok := c.store.Get(ctx, key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Suggest(ctx, query)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(result) > 0 {
		c.store.Put(ctx, key, result)
	}
	return result, nil
}

// LRUStore is a simple thread-safe in-memory LRU Store.
type LRUStore struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.PlaceSuggestion
	prev  *entry
	next  *entry
}

// NewLRUStore creates an LRU store holding at most maxEntries lists.
func NewLRUStore(maxEntries int) *LRUStore {
	return &LRUStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *LRUStore) Get(_ context.Context, key string) ([]domain.PlaceSuggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return cloneSuggestions(e.value), true
}

func (c *LRUStore) Put(_ context.Context, key string, value []domain.PlaceSuggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = cloneSuggestions(value)
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: cloneSuggestions(value)}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the number of cached lists.
func (c *LRUStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUStore) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *LRUStore) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRUStore) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *LRUStore) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

// cloneSuggestions copies the slice so callers cannot mutate cached lists.
func cloneSuggestions(s []domain.PlaceSuggestion) []domain.PlaceSuggestion {
	if s == nil {
		return nil
	}
	out := make([]domain.PlaceSuggestion, len(s))
	copy(out, s)
	return out
}
