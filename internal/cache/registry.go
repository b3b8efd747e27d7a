package cache

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/offlinekit/internal/storage"
)

// Names of the durable caches held by a Registry.
const (
	PersistentCache = "persistent"
	SessionCache    = "session"
)

// Registry holds explicitly constructed cache instances so callers and
// tests share them through a value instead of package state.
type Registry struct {
	bounded    map[string]*BoundedCache[any]
	persistent *DurableCache
	session    *DurableCache
}

// NewRegistry builds the bounded caches named in specs and durable caches
// over the persistent and session stores. A nil store leaves that durable
// cache out.
func NewRegistry(specs []BoundedSpec, persistent, session storage.Store, logger *log.Logger, metrics *Metrics) *Registry {
	r := &Registry{bounded: make(map[string]*BoundedCache[any], len(specs))}
	for _, s := range specs {
		r.bounded[s.Name] = NewBoundedCache[any](s.TTL, s.MaxEntries,
			WithName(s.Name), WithMetrics(metrics))
	}
	if persistent != nil {
		r.persistent = NewDurableCache(PersistentCache, persistent,
			WithLogger(logger), WithMetrics(metrics))
	}
	if session != nil {
		r.session = NewDurableCache(SessionCache, session,
			WithLogger(logger), WithMetrics(metrics))
	}
	return r
}

// Bounded returns the named bounded cache.
func (r *Registry) Bounded(name string) (*BoundedCache[any], bool) {
	c, ok := r.bounded[name]
	return c, ok
}

// BoundedNames returns the bounded cache names in sorted order.
func (r *Registry) BoundedNames() []string {
	names := make([]string, 0, len(r.bounded))
	for name := range r.bounded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Persistent returns the durable cache over the persistent store, or nil.
func (r *Registry) Persistent() *DurableCache {
	return r.persistent
}

// Session returns the durable cache over the session store, or nil.
func (r *Registry) Session() *DurableCache {
	return r.session
}

// Durable returns the named durable cache, or nil.
func (r *Registry) Durable(name string) *DurableCache {
	switch name {
	case PersistentCache:
		return r.persistent
	case SessionCache:
		return r.session
	default:
		return nil
	}
}

// Durables returns every durable cache in the registry.
func (r *Registry) Durables() []*DurableCache {
	var out []*DurableCache
	for _, d := range []*DurableCache{r.persistent, r.session} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Pruners returns the bounded caches as Pruners, sorted by name.
func (r *Registry) Pruners() []Pruner {
	names := r.BoundedNames()
	out := make([]Pruner, 0, len(names))
	for _, name := range names {
		out = append(out, r.bounded[name])
	}
	return out
}

// Stats returns the stats of every bounded cache, sorted by name.
func (r *Registry) Stats() []Stats {
	names := r.BoundedNames()
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		out = append(out, r.bounded[name].Stats())
	}
	return out
}
