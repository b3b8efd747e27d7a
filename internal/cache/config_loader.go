package cache

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads cache configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Durable stores
	if viper.IsSet("cache.store_path") {
		cfg.StorePath = viper.GetString("cache.store_path")
	}
	if viper.IsSet("cache.store_quota") {
		cfg.StoreQuota = viper.GetInt64("cache.store_quota")
	}
	if viper.IsSet("cache.session_quota") {
		cfg.SessionQuota = viper.GetInt64("cache.session_quota")
	}
	if viper.IsSet("cache.compress") {
		cfg.Compress = viper.GetBool("cache.compress")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}

	// Maintenance
	if viper.IsSet("cache.cleanup_interval") {
		cfg.CleanupInterval = viper.GetDuration("cache.cleanup_interval")
	}

	// Preloading
	if viper.IsSet("cache.preload.concurrency") {
		cfg.PreloadConcurrency = viper.GetInt("cache.preload.concurrency")
	}
	if viper.IsSet("cache.preload.rate") {
		cfg.PreloadRate = viper.GetFloat64("cache.preload.rate")
	}
	if viper.IsSet("cache.preload.timeout") {
		cfg.PreloadTimeout = viper.GetDuration("cache.preload.timeout")
	}

	// Resource timing
	if viper.IsSet("cache.observe.enabled") {
		cfg.ObserveHitRate = viper.GetBool("cache.observe.enabled")
	}
	if viper.IsSet("cache.observe.window") {
		cfg.ObserveWindow = viper.GetDuration("cache.observe.window")
	}

	cfg.Bounded = loadBoundedSpecs(cfg.Bounded)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("load cache configuration: %w", err)
	}
	return cfg, nil
}

// loadBoundedSpecs overrides the ttl and size of the named caches found
// under cache.bounded.<name>.
func loadBoundedSpecs(specs []BoundedSpec) []BoundedSpec {
	out := make([]BoundedSpec, len(specs))
	copy(out, specs)
	for i, s := range out {
		prefix := "cache.bounded." + s.Name
		if viper.IsSet(prefix + ".ttl") {
			out[i].TTL = viper.GetDuration(prefix + ".ttl")
		}
		if viper.IsSet(prefix + ".max_entries") {
			out[i].MaxEntries = viper.GetInt(prefix + ".max_entries")
		}
	}
	return out
}
