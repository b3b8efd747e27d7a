package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgnsrekt/offlinekit/internal/storage"
)

// fakeChecker answers existence checks from a table and counts calls.
type fakeChecker struct {
	calls  atomic.Int64
	exists map[string]bool
	fail   map[string]bool
}

func (f *fakeChecker) Exists(ctx context.Context, url string) (bool, error) {
	f.calls.Add(1)
	if f.fail[url] {
		return false, errors.New("network down")
	}
	return f.exists[url], nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://app.test/base/"
	cfg.CleanupInterval = 0
	cfg.PreloadRate = 0
	return cfg
}

func TestController_DevelopmentMakesNoRequests(t *testing.T) {
	checker := &fakeChecker{}
	hints := &HintList{}
	ctrl := NewController(testConfig(), Deps{Checker: checker, Hints: hints, Logger: quietLogger})

	ctx, cancel := context.WithCancel(context.Background())
	if err := ctrl.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	cancel()
	ctrl.Wait()

	if n := checker.calls.Load(); n != 0 {
		t.Errorf("development build made %d existence checks, want 0", n)
	}
	if n := ctrl.Preload(context.Background(), []string{"http://app.test/x.css"}); n != 0 {
		t.Errorf("Preload outside production injected %d hints", n)
	}
	if len(hints.Hints()) != 0 {
		t.Errorf("unexpected hints: %v", hints.Hints())
	}
}

func TestController_PreloadOnlyExistingResources(t *testing.T) {
	cfg := testConfig()
	cfg.Production = true

	resources := DefaultResources(cfg.BaseURL)
	checker := &fakeChecker{
		exists: map[string]bool{resources[0]: true},
		fail:   map[string]bool{resources[1]: true},
	}
	hints := &HintList{}
	ctrl := NewController(cfg, Deps{Checker: checker, Hints: hints, Logger: quietLogger})

	if n := ctrl.Preload(context.Background(), resources); n != 1 {
		t.Fatalf("Preload() = %d, want 1", n)
	}

	got := hints.Hints()
	if len(got) != 1 {
		t.Fatalf("hints = %v, want one", got)
	}
	if got[0].Href != "http://app.test/base/static/css/main.css" || got[0].As != "style" {
		t.Errorf("hint = %+v", got[0])
	}
	if ctrl.Stats().HintsInjected != 1 {
		t.Errorf("HintsInjected = %d, want 1", ctrl.Stats().HintsInjected)
	}
}

func TestController_InitializePreloadsInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Production = true

	resources := DefaultResources(cfg.BaseURL)
	checker := &fakeChecker{exists: map[string]bool{resources[0]: true, resources[1]: true}}
	hints := &HintList{}
	ctrl := NewController(cfg, Deps{Checker: checker, Hints: hints, Logger: quietLogger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	ctrl.Wait()

	if n := checker.calls.Load(); n != 2 {
		t.Errorf("existence checks = %d, want 2", n)
	}
	kinds := map[string]string{}
	for _, h := range hints.Hints() {
		kinds[h.Href] = h.As
	}
	if kinds[resources[0]] != "style" || kinds[resources[1]] != "script" {
		t.Errorf("hints = %v", hints.Hints())
	}
}

func TestController_InitializeTwice(t *testing.T) {
	ctrl := NewController(testConfig(), Deps{Logger: quietLogger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := ctrl.Initialize(ctx); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}
}

func TestController_InitializeSweepsDurables(t *testing.T) {
	store := storage.NewMemory(0)
	durable, clock := newTestDurable(t, store)
	durable.Set("stale", 1, time.Second)
	durable.Set("fresh", 2, time.Hour)
	_ = store.Set("corrupt", "}")
	clock.Advance(2 * time.Second)

	ctrl := NewController(testConfig(), Deps{Durables: []*DurableCache{durable}, Logger: quietLogger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	stats := ctrl.Stats()
	if stats.CleanupRuns != 1 || stats.Removed != 2 {
		t.Errorf("stats = %+v, want 1 run removing 2", stats)
	}
}

func TestController_PeriodicSweepStopsWithContext(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = 5 * time.Millisecond

	bounded := NewBoundedCache[int](time.Millisecond, 10)
	ctrl := NewController(cfg, Deps{Pruners: []Pruner{bounded}, Logger: quietLogger})

	ctx, cancel := context.WithCancel(context.Background())
	if err := ctrl.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Stats().CleanupRuns < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("periodic sweep did not run, stats %+v", ctrl.Stats())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	ctrl.Wait()

	runs := ctrl.Stats().CleanupRuns
	time.Sleep(20 * time.Millisecond)
	if got := ctrl.Stats().CleanupRuns; got != runs {
		t.Errorf("sweep kept running after cancel: %d -> %d", runs, got)
	}
}

func TestController_ObserveHitRate(t *testing.T) {
	cfg := testConfig()
	cfg.ObserveWindow = time.Hour

	feed := NewTimingFeed()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ctrl := NewController(cfg, Deps{Timings: feed, Logger: quietLogger, Metrics: metrics})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct{ observed, hits int }
	done := make(chan result, 1)
	go func() {
		o, h := ctrl.ObserveHitRate(ctx)
		done <- result{o, h}
	}()

	for feed.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	feed.Publish(ResourceTiming{Name: "a.js", TransferSize: 0, DecodedSize: 120})
	feed.Publish(ResourceTiming{Name: "b.js", TransferSize: 300, DecodedSize: 120})
	feed.Publish(ResourceTiming{Name: "beacon", TransferSize: 0, DecodedSize: 0})
	cancel()

	res := <-done
	if res.observed != 3 || res.hits != 1 {
		t.Errorf("observed/hits = %d/%d, want 3/1", res.observed, res.hits)
	}
	if feed.Subscribers() != 0 {
		t.Error("observer should unsubscribe when finished")
	}
	if got := testutil.ToFloat64(metrics.ResourceObservations.WithLabelValues("cache")); got != 1 {
		t.Errorf("cache observations metric = %v, want 1", got)
	}
}

func TestController_ObserveWindowEnds(t *testing.T) {
	cfg := testConfig()
	cfg.ObserveWindow = 10 * time.Millisecond

	feed := NewTimingFeed()
	ctrl := NewController(cfg, Deps{Timings: feed, Logger: quietLogger})

	start := time.Now()
	ctrl.ObserveHitRate(context.Background())
	if time.Since(start) < 10*time.Millisecond {
		t.Error("observation ended before its window")
	}
	if feed.Subscribers() != 0 {
		t.Error("observer should unsubscribe after its window")
	}
}

func TestHintFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"/static/css/main.css", "style"},
		{"/static/css/main.css?v=2", "style"},
		{"/static/js/main.js", "script"},
		{"/static/js/chunk", "script"},
	}
	for _, tt := range tests {
		if got := hintFor(tt.url).As; got != tt.want {
			t.Errorf("hintFor(%q).As = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(DefaultBoundedSpecs(), storage.NewMemory(0), storage.NewMemory(0), quietLogger, nil)

	if got := strings.Join(reg.BoundedNames(), ","); got != "api,component,static" {
		t.Errorf("BoundedNames() = %s", got)
	}
	api, ok := reg.Bounded(APICache)
	if !ok {
		t.Fatal("api cache missing")
	}
	if stats := api.Stats(); stats.MaxEntries != 100 || stats.TTL != 5*time.Minute {
		t.Errorf("api cache = %d entries / %v", stats.MaxEntries, stats.TTL)
	}
	if len(reg.Durables()) != 2 || reg.Durable(SessionCache) != reg.Session() {
		t.Error("durable caches not wired")
	}
	if len(reg.Pruners()) != 3 {
		t.Errorf("Pruners() = %d, want 3", len(reg.Pruners()))
	}

	// Two registries never share state.
	other := NewRegistry(DefaultBoundedSpecs(), nil, nil, quietLogger, nil)
	api.Set("k", 1)
	otherAPI, _ := other.Bounded(APICache)
	if otherAPI.Contains("k") {
		t.Error("registries share cache state")
	}
	if other.Persistent() != nil || len(other.Durables()) != 0 {
		t.Error("nil stores should leave durable caches out")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.hit("x")
	m.miss("x")
	m.write("x", false)
	m.observed(true)

	var wg sync.WaitGroup
	c := NewBoundedCache[int](time.Minute, 1, WithMetrics(nil))
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Set("a", 1)
	}()
	wg.Wait()
}
