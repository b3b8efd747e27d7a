package cache

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrInvalidConfig is returned when a cache configuration cannot be used
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrCacheCorrupted is returned when a stored item cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// NoExpiry stores a durable item without an expiry time.
const NoExpiry time.Duration = -1

// Stats holds bounded cache metrics.
type Stats struct {
	// Configuration
	Name       string
	MaxEntries int
	TTL        time.Duration

	// Current state
	Size  int    // Number of live entries
	Usage uint64 // Current value of the usage counter
	Bytes int64  // Estimated JSON size of all entries

	// Performance metrics
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	HitRate     float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

// BoundedSpec describes one named bounded cache.
type BoundedSpec struct {
	Name       string        `yaml:"name"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// Names of the default bounded caches.
const (
	APICache       = "api"
	StaticCache    = "static"
	ComponentCache = "component"
)

// DefaultBoundedSpecs returns the default named caches.
func DefaultBoundedSpecs() []BoundedSpec {
	return []BoundedSpec{
		{Name: APICache, TTL: 5 * time.Minute, MaxEntries: 100},
		{Name: StaticCache, TTL: 30 * time.Minute, MaxEntries: 50},
		{Name: ComponentCache, TTL: 10 * time.Minute, MaxEntries: 25},
	}
}

// Config holds cache lifecycle configuration.
type Config struct {
	// Build mode
	Production bool   // Preloading only happens in production
	BaseURL    string // Origin plus public path used for preload resources

	// Bounded caches
	Bounded []BoundedSpec

	// Durable caches
	StorePath        string // SQLite file for the persistent store
	StoreQuota       int64  // Bytes, 0 = unlimited
	SessionQuota     int64  // Bytes, 0 = unlimited
	Compress         bool   // Zstd-compress persistent values
	CompressionLevel int    // Zstd level (1-22, default 3)

	// Maintenance
	CleanupInterval time.Duration // Periodic durable sweep (default 5m)

	// Preloading
	PreloadConcurrency int           // Parallel existence checks
	PreloadRate        float64       // Existence checks per second, 0 = unlimited
	PreloadTimeout     time.Duration // Per-check timeout

	// Resource timing
	ObserveHitRate bool          // Sample resource-timing cache hits on Initialize
	ObserveWindow  time.Duration // Observation window (default 30s)
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Bounded:            DefaultBoundedSpecs(),
		StoreQuota:         5 * 1024 * 1024, // 5MB, the usual web storage quota
		SessionQuota:       5 * 1024 * 1024,
		Compress:           true,
		CompressionLevel:   3,
		CleanupInterval:    5 * time.Minute,
		PreloadConcurrency: 4,
		PreloadRate:        10,
		PreloadTimeout:     5 * time.Second,
		ObserveWindow:      30 * time.Second,
	}
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	for _, b := range c.Bounded {
		if b.Name == "" {
			return fmt.Errorf("%w: bounded cache name is required", ErrInvalidConfig)
		}
		if b.MaxEntries < 1 {
			return fmt.Errorf("%w: bounded cache %s needs at least one entry", ErrInvalidConfig, b.Name)
		}
		if b.TTL < 0 {
			return fmt.Errorf("%w: bounded cache %s has a negative ttl", ErrInvalidConfig, b.Name)
		}
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("%w: cleanup interval must not be negative", ErrInvalidConfig)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("%w: compression level must be between 1 and 22", ErrInvalidConfig)
	}
	return nil
}
