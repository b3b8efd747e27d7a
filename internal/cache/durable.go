package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/offlinekit/internal/storage"
)

// storedItem is the wire form of a durable entry. Times are Unix
// milliseconds; a nil ExpiresAt never expires.
type storedItem struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt *int64          `json:"expiresAt"`
}

func (i storedItem) expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.UnixMilli() >= *i.ExpiresAt
}

// DurableCache tags values with a TTL and stores them as JSON text in a
// durable store. Storage faults are reported as false returns and logged;
// absent or unparsable items are plain misses.
type DurableCache struct {
	name    string
	prefix  string
	store   storage.Store
	now     func() time.Time
	metrics *Metrics
	logger  *log.Logger
}

// NewDurableCache creates a cache over store. Without WithPrefix the cache
// owns every key in the store.
func NewDurableCache(name string, store storage.Store, opts ...Option) *DurableCache {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}
	return &DurableCache{
		name:    name,
		prefix:  o.prefix,
		store:   store,
		now:     o.now,
		metrics: o.metrics,
		logger:  logger,
	}
}

// Name returns the cache label.
func (c *DurableCache) Name() string {
	return c.name
}

// Set stores data under key for ttl. Use NoExpiry to keep it until removed.
// It returns false, without an error, when the value cannot be encoded or
// the store rejects the write.
func (c *DurableCache) Set(key string, data any, ttl time.Duration) bool {
	ok := c.set(key, data, ttl)
	c.metrics.write(c.name, ok)
	return ok
}

func (c *DurableCache) set(key string, data any, ttl time.Duration) bool {
	raw, err := marshalData(data)
	if err != nil {
		c.logger.Warn("durable cache set failed", "cache", c.name, "key", key, "err", err)
		return false
	}

	now := c.now()
	item := storedItem{Data: raw, CreatedAt: now.UnixMilli()}
	if ttl >= 0 {
		expiresAt := now.Add(ttl).UnixMilli()
		item.ExpiresAt = &expiresAt
	}

	text, err := json.Marshal(item)
	if err != nil {
		c.logger.Warn("durable cache set failed", "cache", c.name, "key", key, "err", err)
		return false
	}
	if err := c.store.Set(c.prefix+key, string(text)); err != nil {
		c.logger.Warn("durable cache set failed", "cache", c.name, "key", key, "err", err)
		return false
	}
	return true
}

// Get decodes the item stored under key into out, which must be a pointer.
// It reports false for absent, corrupt and expired items; expired items are
// removed before returning.
func (c *DurableCache) Get(key string, out any) bool {
	item, ok := c.load(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(item.Data, out); err != nil {
		c.logger.Debug("durable cache item does not fit target", "cache", c.name, "key", key, "err", err)
		return false
	}
	return true
}

// GetAs is Get for a concrete type.
func GetAs[T any](c *DurableCache, key string) (T, bool) {
	var v T
	if !c.Get(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Raw returns the stored data of a live item as JSON text.
func (c *DurableCache) Raw(key string) (json.RawMessage, bool) {
	item, ok := c.load(key)
	if !ok {
		return nil, false
	}
	return item.Data, true
}

func (c *DurableCache) load(key string) (storedItem, bool) {
	text, ok, err := c.store.Get(c.prefix + key)
	if err != nil {
		c.logger.Debug("durable cache read failed", "cache", c.name, "key", key, "err", err)
		return storedItem{}, false
	}
	if !ok {
		return storedItem{}, false
	}

	item, err := parseItem(text)
	if err != nil {
		c.logger.Debug("durable cache item corrupt", "cache", c.name, "key", key, "err", err)
		return storedItem{}, false
	}
	if item.expired(c.now()) {
		c.Remove(key)
		return storedItem{}, false
	}
	return item, true
}

// Remove deletes key and reports whether the store accepted the removal.
func (c *DurableCache) Remove(key string) bool {
	if err := c.store.Remove(c.prefix + key); err != nil {
		c.logger.Warn("durable cache remove failed", "cache", c.name, "key", key, "err", err)
		return false
	}
	return true
}

// Clear removes every key this cache owns.
func (c *DurableCache) Clear() bool {
	if c.prefix == "" {
		if err := c.store.Clear(); err != nil {
			c.logger.Warn("durable cache clear failed", "cache", c.name, "err", err)
			return false
		}
		return true
	}

	keys, err := c.ownedKeys()
	if err != nil {
		c.logger.Warn("durable cache clear failed", "cache", c.name, "err", err)
		return false
	}
	ok := true
	for _, k := range keys {
		if err := c.store.Remove(k); err != nil {
			c.logger.Warn("durable cache clear failed", "cache", c.name, "key", k, "err", err)
			ok = false
		}
	}
	return ok
}

// Cleanup removes every owned item that is expired or corrupt and returns
// how many were removed. Keys are collected first and removed afterwards so
// the store can shrink safely.
func (c *DurableCache) Cleanup() int {
	keys, err := c.ownedKeys()
	if err != nil {
		c.logger.Warn("durable cache cleanup failed", "cache", c.name, "err", err)
		return 0
	}

	now := c.now()
	var doomed []string
	for _, k := range keys {
		text, ok, err := c.store.Get(k)
		if err != nil || !ok {
			continue
		}
		item, err := parseItem(text)
		if err != nil || item.expired(now) {
			doomed = append(doomed, k)
		}
	}

	removed := 0
	for _, k := range doomed {
		if err := c.store.Remove(k); err != nil {
			c.logger.Warn("durable cache cleanup remove failed", "cache", c.name, "key", k, "err", err)
			continue
		}
		removed++
	}

	c.metrics.cleaned(c.name, removed)
	if removed > 0 {
		c.logger.Debug("durable cache cleaned", "cache", c.name, "removed", removed)
	}
	return removed
}

// Keys returns the owned keys without the namespace prefix.
func (c *DurableCache) Keys() []string {
	keys, err := c.ownedKeys()
	if err != nil {
		c.logger.Warn("durable cache list failed", "cache", c.name, "err", err)
		return nil
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, c.prefix)
	}
	return keys
}

// ownedKeys returns the full store keys owned by this cache.
func (c *DurableCache) ownedKeys() ([]string, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, err
	}
	if c.prefix == "" {
		return keys, nil
	}
	owned := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, c.prefix) {
			owned = append(owned, k)
		}
	}
	return owned, nil
}

func parseItem(text string) (storedItem, error) {
	var item storedItem
	if err := json.Unmarshal([]byte(text), &item); err != nil {
		return storedItem{}, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	if item.Data == nil {
		return storedItem{}, fmt.Errorf("%w: missing data", ErrCacheCorrupted)
	}
	return item, nil
}

// marshalData encodes data, converting encoder panics into errors.
func marshalData(data any) (raw json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encode data: %v", r)
		}
	}()
	return json.Marshal(data)
}
