package baidu

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

// CachedGeocoder wraps a Geocoder with in-memory LRU caches.
type CachedGeocoder struct {
	inner   domain.Geocoder
	forward *lruCache[domain.Location]
	reverse *lruCache[domain.ReverseResult]
	metrics *observability.Metrics
}

var _ domain.Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		forward: newLRUCache[domain.Location](maxEntries),
		reverse: newLRUCache[domain.ReverseResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, address, city string) (*domain.Location, error) {
	key := fmt.Sprintf("fwd:%s|%s", address, city)
	if loc, ok := c.forward.get(key); ok {
		c.metrics.Cache.WithLabelValues("geocode", "hit").Inc()
		loc = cloneLocation(loc)
		return &loc, nil
	}
	c.metrics.Cache.WithLabelValues("geocode", "miss").Inc()

	loc, err := c.inner.Geocode(ctx, address, city)
	if err != nil {
		return nil, err
	}
	// Only cache found results so "no result" answers can be retried.
	if loc != nil {
		c.forward.put(key, cloneLocation(*loc))
	}
	return loc, nil
}

func (c *CachedGeocoder) Reverse(ctx context.Context, p domain.Point, opts domain.ReverseOptions) (*domain.ReverseResult, error) {
	if opts.CoordType == "" {
		opts.CoordType = domain.CoordBD09
	}
	key := fmt.Sprintf("rev:%s|%s|%t", p, opts.CoordType, opts.IncludePOIs)
	if res, ok := c.reverse.get(key); ok {
		c.metrics.Cache.WithLabelValues("reverse", "hit").Inc()
		res = cloneReverse(res)
		return &res, nil
	}
	c.metrics.Cache.WithLabelValues("reverse", "miss").Inc()

	res, err := c.inner.Reverse(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	if res != nil {
		c.reverse.put(key, cloneReverse(*res))
	}
	return res, nil
}

// cloneLocation copies loc so callers never share the provider payload
// with the cache or with each other.
func cloneLocation(loc domain.Location) domain.Location {
	loc.Raw = cloneMap(loc.Raw)
	return loc
}

func cloneReverse(res domain.ReverseResult) domain.ReverseResult {
	res.Location = cloneLocation(res.Location)
	if res.POIs != nil {
		pois := make([]domain.PlaceOfInterest, len(res.POIs))
		for i, p := range res.POIs {
			pois[i] = cloneMap(p)
		}
		res.POIs = pois
	}
	return res
}

// cloneMap deep-copies decoded JSON objects and arrays.
func cloneMap[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// lruCache is a small thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
