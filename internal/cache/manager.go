package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrAlreadyInitialized is returned when Initialize is called twice.
var ErrAlreadyInitialized = errors.New("cache controller already initialized")

// Pruner drops expired entries from an in-memory cache.
type Pruner interface {
	Prune() int
}

// Deps are the collaborators of a Controller. Nil fields disable the
// feature that needs them.
type Deps struct {
	Durables []*DurableCache
	Pruners  []Pruner
	Checker  Checker
	Hints    HintSink
	Timings  TimingSource
	Logger   *log.Logger
	Metrics  *Metrics
}

// ControllerStats holds lifecycle counters.
type ControllerStats struct {
	CleanupRuns   int64
	LastCleanup   time.Time
	Removed       int64 // Durable items removed by sweeps
	Pruned        int64 // Bounded entries pruned by sweeps
	HintsInjected int64
	Observed      int64 // Resource timings seen while observing
	ResourceHits  int64 // Of those, served from cache
}

// Controller owns the cache lifecycle: startup cleanup, critical resource
// preloading, hit-rate observation and the periodic sweep.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *log.Logger

	// Preloading
	limiter  *rate.Limiter
	inflight singleflight.Group

	// Background goroutines started by Initialize
	started bool
	wg      sync.WaitGroup

	mu    sync.Mutex
	stats ControllerStats
}

// NewController creates a controller for cfg.
func NewController(cfg Config, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}

	limit := rate.Inf
	if cfg.PreloadRate > 0 {
		limit = rate.Limit(cfg.PreloadRate)
	}
	burst := cfg.PreloadConcurrency
	if burst < 1 {
		burst = 1
	}

	return &Controller{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Initialize sweeps every durable cache, then starts preloading, hit-rate
// observation and the periodic sweep in the background. Background work
// stops when ctx is cancelled; Wait blocks until it has.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.started = true
	c.mu.Unlock()

	c.Sweep()

	if c.cfg.Production {
		resources := DefaultResources(c.cfg.BaseURL)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.Preload(ctx, resources)
		}()
	}

	if c.cfg.ObserveHitRate {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.ObserveHitRate(ctx)
		}()
	}

	if c.cfg.CleanupInterval > 0 {
		c.startCleanupRoutine(ctx)
	}

	c.logger.Info("cache lifecycle initialized",
		"production", c.cfg.Production,
		"durables", len(c.deps.Durables),
		"interval", c.cfg.CleanupInterval)
	return nil
}

// Wait blocks until the background work started by Initialize has stopped.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// startCleanupRoutine sweeps every CleanupInterval until ctx is done.
func (c *Controller) startCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CleanupInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep removes expired and corrupt durable items and prunes bounded
// caches. It returns the number of durable items removed.
func (c *Controller) Sweep() int {
	removed := 0
	for _, d := range c.deps.Durables {
		removed += d.Cleanup()
	}
	pruned := 0
	for _, p := range c.deps.Pruners {
		pruned += p.Prune()
	}

	c.mu.Lock()
	c.stats.CleanupRuns++
	c.stats.LastCleanup = time.Now()
	c.stats.Removed += int64(removed)
	c.stats.Pruned += int64(pruned)
	c.mu.Unlock()

	c.deps.Metrics.cleanupRun()
	c.logger.Debug("cache sweep", "removed", removed, "pruned", pruned)
	return removed
}

// Preload checks each resource and injects a preload hint for the ones that
// exist. Outside production it does nothing. Check failures are logged and
// otherwise ignored. It returns the number of hints injected.
func (c *Controller) Preload(ctx context.Context, resources []string) int {
	if !c.cfg.Production || c.deps.Checker == nil || c.deps.Hints == nil {
		return 0
	}

	var (
		mu       sync.Mutex
		injected int
	)

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.PreloadConcurrency > 0 {
		g.SetLimit(c.cfg.PreloadConcurrency)
	}

	for _, url := range resources {
		g.Go(func() error {
			if !c.exists(gctx, url) {
				return nil
			}
			c.deps.Hints.AddHint(hintFor(url))
			c.deps.Metrics.hint()

			mu.Lock()
			injected++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	c.stats.HintsInjected += int64(injected)
	c.mu.Unlock()
	return injected
}

// exists runs one rate-limited, de-duplicated existence check.
func (c *Controller) exists(ctx context.Context, url string) bool {
	v, err, _ := c.inflight.Do(url, func() (any, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}
		checkCtx := ctx
		if c.cfg.PreloadTimeout > 0 {
			var cancel context.CancelFunc
			checkCtx, cancel = context.WithTimeout(ctx, c.cfg.PreloadTimeout)
			defer cancel()
		}
		return c.deps.Checker.Exists(checkCtx, url)
	})
	if err != nil {
		c.logger.Debug("preload check failed", "url", url, "err", err)
		return false
	}
	return v.(bool)
}

// ObserveHitRate counts resource timings served from cache for the
// configured window, then unsubscribes. It returns the number of timings
// observed and how many of them were cache hits.
func (c *Controller) ObserveHitRate(ctx context.Context) (int, int) {
	if c.deps.Timings == nil {
		return 0, 0
	}
	window := c.cfg.ObserveWindow
	if window <= 0 {
		window = 30 * time.Second
	}

	var (
		mu       sync.Mutex
		observed int
		hits     int
	)
	unsubscribe := c.deps.Timings.Subscribe(func(rt ResourceTiming) {
		hit := rt.FromCache()
		if hit {
			c.logger.Debug("cache hit", "resource", rt.Name)
		}
		c.deps.Metrics.observed(hit)

		mu.Lock()
		observed++
		if hit {
			hits++
		}
		mu.Unlock()
	})

	timer := time.NewTimer(window)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	unsubscribe()

	mu.Lock()
	o, h := observed, hits
	mu.Unlock()

	c.mu.Lock()
	c.stats.Observed += int64(o)
	c.stats.ResourceHits += int64(h)
	c.mu.Unlock()

	c.logger.Debug("resource observation finished", "observed", o, "hits", h)
	return o, h
}

// Stats returns lifecycle counters.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
