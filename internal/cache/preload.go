package cache

import (
	"context"
	"strings"
	"sync"
)

// Checker reports whether a resource exists (a HEAD request returning 2xx).
type Checker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// Hint is a preload hint for a critical resource.
type Hint struct {
	Href string
	As   string // "style" or "script"
}

// HintSink receives preload hints.
type HintSink interface {
	AddHint(Hint)
}

// HintList is a HintSink that records hints in arrival order.
type HintList struct {
	mu    sync.Mutex
	hints []Hint
}

// AddHint records h.
func (l *HintList) AddHint(h Hint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hints = append(l.hints, h)
}

// Hints returns a copy of the recorded hints.
func (l *HintList) Hints() []Hint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hint, len(l.hints))
	copy(out, l.hints)
	return out
}

// DefaultResources returns the critical stylesheet and script under base.
func DefaultResources(base string) []string {
	base = strings.TrimRight(base, "/")
	return []string{
		base + "/static/css/main.css",
		base + "/static/js/main.js",
	}
}

// hintFor builds the preload hint for url.
func hintFor(url string) Hint {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	as := "script"
	if strings.HasSuffix(path, ".css") {
		as = "style"
	}
	return Hint{Href: url, As: as}
}
