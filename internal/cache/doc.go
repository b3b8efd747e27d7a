// Package cache provides the client-side caches and their lifecycle.
// It includes a bounded in-memory cache with TTL expiry and recency-based
// eviction, a TTL-tagged cache over a durable key-value store, and a
// controller that sweeps expired entries, preloads critical resources and
// samples resource-timing cache hits.
package cache
