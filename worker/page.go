package worker

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
)

// StaticPage is a Page for a fixed URL. It counts as loaded once MarkLoaded
// is called, and Reload runs an optional callback.
type StaticPage struct {
	origin   string
	hostname string
	onReload func()

	loaded   chan struct{}
	loadOnce sync.Once
	reloads  atomic.Int64
}

// NewStaticPage creates a page for rawURL.
func NewStaticPage(rawURL string, onReload func()) (*StaticPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("page url %q must be absolute", rawURL)
	}
	return &StaticPage{
		origin:   u.Scheme + "://" + u.Host,
		hostname: u.Hostname(),
		onReload: onReload,
		loaded:   make(chan struct{}),
	}, nil
}

func (p *StaticPage) Origin() string { return p.origin }
func (p *StaticPage) Hostname() string { return p.hostname }

// MarkLoaded fires the load event.
func (p *StaticPage) MarkLoaded() {
	p.loadOnce.Do(func() { close(p.loaded) })
}

// WaitLoad blocks until MarkLoaded is called or ctx is done.
func (p *StaticPage) WaitLoad(ctx context.Context) error {
	select {
	case <-p.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload counts the reload and runs the reload callback.
func (p *StaticPage) Reload() {
	p.reloads.Add(1)
	if p.onReload != nil {
		p.onReload()
	}
}

// Reloads returns how many times Reload was called.
func (p *StaticPage) Reloads() int {
	return int(p.reloads.Load())
}

var loopbackV4 = regexp.MustCompile(`^127(?:\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)){3}$`)

// IsLocalhost reports whether hostname is a local development host.
func IsLocalhost(hostname string) bool {
	switch hostname {
	case "localhost", "[::1]", "::1":
		return true
	}
	return loopbackV4.MatchString(hostname)
}
