package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var quietLogger = log.New(io.Discard)

func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/static/css/main.css", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/css")
		_, _ = io.WriteString(w, "body{}")
	})
	mux.HandleFunc("/service-worker.js", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Service-Worker") != "script" {
			http.Error(w, "missing header", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = io.WriteString(w, "self.addEventListener('install', () => {})")
	})
	mux.HandleFunc("/bare.js", func(w http.ResponseWriter, r *http.Request) {
		// No Content-Type, and no sniffing either
		w.Header()["Content-Type"] = nil
		_, _ = io.WriteString(w, "self.skipWaiting()")
	})
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClient_Exists(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(WithLogger(quietLogger))

	ok, err := c.Exists(context.Background(), srv.URL+"/static/css/main.css")
	if err != nil || !ok {
		t.Errorf("Exists(main.css) = %v, %v; want true, nil", ok, err)
	}

	ok, err = c.Exists(context.Background(), srv.URL+"/missing.js")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}

	srv.Close()
	if _, err := c.Exists(context.Background(), srv.URL+"/static/css/main.css"); err == nil {
		t.Error("Exists against a closed server should fail")
	}
}

func TestScriptCheck_Valid(t *testing.T) {
	tests := []struct {
		check ScriptCheck
		valid bool
	}{
		{ScriptCheck{Status: 200, ContentType: "application/javascript; charset=utf-8"}, true},
		{ScriptCheck{Status: 200, ContentType: ""}, true},
		{ScriptCheck{Status: 200, ContentType: "text/html"}, false},
		{ScriptCheck{Status: 404, ContentType: ""}, false},
		{ScriptCheck{Status: 404, ContentType: "text/javascript"}, false},
	}
	for _, tt := range tests {
		if got := tt.check.Valid(); got != tt.valid {
			t.Errorf("%+v.Valid() = %v, want %v", tt.check, got, tt.valid)
		}
	}
}

func TestClient_CheckScript(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(WithLogger(quietLogger))

	tests := []struct {
		path  string
		valid bool
	}{
		{"/service-worker.js", true},
		{"/bare.js", true},
		{"/missing.js", false},
		{"/index.html", false},
	}
	for _, tt := range tests {
		check, err := c.CheckScript(context.Background(), srv.URL+tt.path)
		if err != nil {
			t.Fatalf("CheckScript(%s) failed: %v", tt.path, err)
		}
		if check.Valid() != tt.valid {
			t.Errorf("CheckScript(%s).Valid() = %v, want %v (%+v)", tt.path, check.Valid(), tt.valid, check)
		}
	}
}

// mapCache is a minimal BodyCache.
type mapCache struct {
	mu sync.Mutex
	m  map[string]any
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = data
}

func TestClient_FetchReportsCacheHits(t *testing.T) {
	srv, hits := newTestServer(t)

	var timings []Timing
	c := New(
		WithLogger(quietLogger),
		WithBodyCache(&mapCache{m: map[string]any{}}),
		WithTimingHook(func(tm Timing) { timings = append(timings, tm) }),
	)

	url := srv.URL + "/static/css/main.css"
	for i := 0; i < 2; i++ {
		body, err := c.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("Fetch #%d failed: %v", i, err)
		}
		if string(body) != "body{}" {
			t.Errorf("Fetch #%d body = %q", i, body)
		}
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if len(timings) != 2 {
		t.Fatalf("timings = %d, want 2", len(timings))
	}
	if timings[0].TransferSize == 0 {
		t.Error("network load should report a transfer size")
	}
	if timings[1].TransferSize != 0 || timings[1].DecodedSize != 6 {
		t.Errorf("cached load timing = %+v", timings[1])
	}
}

func TestClient_FetchFailureNotCached(t *testing.T) {
	srv, _ := newTestServer(t)
	cache := &mapCache{m: map[string]any{}}
	c := New(WithLogger(quietLogger), WithBodyCache(cache))

	if _, err := c.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("Fetch of a 404 should fail")
	}
	if _, ok := cache.Get(srv.URL + "/missing"); ok {
		t.Error("failed loads must not be cached")
	}
}

func TestClient_Watch(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(WithLogger(quietLogger), WithTimeout(200*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := make(chan bool, 4)
	go c.Watch(ctx, srv.URL+"/index.html", 5*time.Millisecond, func(online bool) {
		states <- online
	})

	if online := <-states; !online {
		t.Fatal("initial state should be online")
	}

	srv.Close()
	select {
	case online := <-states:
		if online {
			t.Error("expected offline after server shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not report going offline")
	}
}
