package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// BoundedCache is an in-memory cache bounded by entry count with a fixed
// per-entry TTL. When full, the entry with the smallest usage counter (the
// least recently set or read) is evicted.
type BoundedCache[T any] struct {
	name       string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	metrics    *Metrics

	// LRU implementation: front holds the highest usage counter
	items    map[string]*list.Element
	eviction *list.List
	usage    uint64
	bytes    int64

	// Synchronization
	mu sync.Mutex

	// Metrics
	stats Stats
}

// boundedEntry represents an entry in a bounded cache
type boundedEntry[T any] struct {
	key       string
	data      T
	createdAt time.Time
	expiresAt time.Time
	usage     uint64
	size      int64
}

// Option configures a bounded cache.
type Option func(*options)

type options struct {
	name    string
	prefix  string
	now     func() time.Time
	metrics *Metrics
	logger  *log.Logger
}

// WithName labels the cache in stats and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records cache activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPrefix namespaces durable keys. Bounded caches ignore it.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithLogger sets the logger used to report swallowed faults.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewBoundedCache creates a cache holding at most maxEntries entries, each
// living for ttl. maxEntries below one is raised to one.
func NewBoundedCache[T any](ttl time.Duration, maxEntries int, opts ...Option) *BoundedCache[T] {
	o := options{name: "bounded", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &BoundedCache[T]{
		name:       o.name,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        o.now,
		metrics:    o.metrics,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		stats: Stats{
			Name:       o.name,
			MaxEntries: maxEntries,
			TTL:        ttl,
		},
	}
}

// Set stores data under key. Expired entries are purged first; if the cache
// is still full, exactly one entry is evicted, even when key is already
// present. An existing entry for key is then replaced.
func (c *BoundedCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeExpired(now)

	if len(c.items) >= c.maxEntries {
		c.evictOldest(now)
	}
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	c.usage++
	entry := &boundedEntry[T]{
		key:       key,
		data:      data,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
		usage:     c.usage,
		size:      estimateSize(data),
	}
	c.items[key] = c.eviction.PushFront(entry)
	c.bytes += entry.size
	c.metrics.entries(c.name, len(c.items))
}

// Get returns the data stored under key. An expired entry is removed and
// reported as a miss. A hit makes the entry the most recently used.
func (c *BoundedCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	now := c.now()
	c.stats.LastAccess = now

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		c.metrics.miss(c.name)
		return zero, false
	}

	entry := elem.Value.(*boundedEntry[T])
	if isExpired(entry.expiresAt, now) {
		c.removeElement(elem)
		c.stats.Expirations++
		c.stats.Misses++
		c.metrics.expire(c.name, 1)
		c.metrics.miss(c.name)
		c.metrics.entries(c.name, len(c.items))
		return zero, false
	}

	c.usage++
	entry.usage = c.usage
	c.eviction.MoveToFront(elem)

	c.stats.Hits++
	c.metrics.hit(c.name)
	return entry.data, true
}

// Contains reports whether a live entry exists for key without touching its
// usage counter.
func (c *BoundedCache[T]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	return !isExpired(elem.Value.(*boundedEntry[T]).expiresAt, c.now())
}

// Delete removes key and reports whether it was present.
func (c *BoundedCache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.metrics.entries(c.name, len(c.items))
	return true
}

// Clear removes all entries. Counters and statistics are kept.
func (c *BoundedCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.bytes = 0
	c.metrics.entries(c.name, 0)
}

// Prune removes every expired entry and returns how many were removed.
func (c *BoundedCache[T]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.purgeExpired(c.now())
	c.metrics.entries(c.name, len(c.items))
	return n
}

// Keys returns the keys from most to least recently used.
func (c *BoundedCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*boundedEntry[T]).key)
	}
	return keys
}

// Len returns the number of stored entries, expired or not.
func (c *BoundedCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *BoundedCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	stats.Usage = c.usage
	stats.Bytes = c.bytes
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// purgeExpired drops every expired entry. Caller must hold the lock.
func (c *BoundedCache[T]) purgeExpired(now time.Time) int {
	var expired []*list.Element
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		if isExpired(elem.Value.(*boundedEntry[T]).expiresAt, now) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeElement(elem)
	}
	c.stats.Expirations += int64(len(expired))
	c.metrics.expire(c.name, len(expired))
	return len(expired)
}

// evictOldest removes the entry with the smallest usage counter.
func (c *BoundedCache[T]) evictOldest(now time.Time) {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	c.stats.Evictions++
	c.stats.LastEvict = now
	c.metrics.evict(c.name)
}

// removeElement removes an element from the cache. Caller must hold the lock.
func (c *BoundedCache[T]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*boundedEntry[T])
	delete(c.items, entry.key)
	c.bytes -= entry.size
}

// isExpired reports whether an entry with the given expiry is dead at now.
func isExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// estimateSize returns the JSON length of v, or 1 when v cannot be encoded.
func estimateSize(v any) (size int64) {
	defer func() {
		if recover() != nil {
			size = 1
		}
	}()
	b, err := json.Marshal(v)
	if err != nil || len(b) == 0 {
		return 1
	}
	return int64(len(b))
}
