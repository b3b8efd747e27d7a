package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/offlinekit/internal/probe"
)

var quietLogger = log.New(io.Discard)

// recordingChannel records every message sent to the runtime.
type recordingChannel struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (c *recordingChannel) Send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *recordingChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeChecker returns a fixed script check.
type fakeChecker struct {
	check probe.ScriptCheck
	err   error
	calls int
}

func (f *fakeChecker) CheckScript(ctx context.Context, url string) (probe.ScriptCheck, error) {
	f.calls++
	return f.check, f.err
}

var errNetwork = errors.New("dial tcp: connection refused")

func newLoadedPage(t *testing.T, rawURL string) *StaticPage {
	t.Helper()
	page, err := NewStaticPage(rawURL, nil)
	if err != nil {
		t.Fatalf("NewStaticPage failed: %v", err)
	}
	page.MarkLoaded()
	return page
}

// installWorker drives a worker from install to installed.
func installWorker(t *testing.T, h *Host, id string) {
	t.Helper()
	if err := h.BeginInstall(id); err != nil {
		t.Fatalf("BeginInstall(%s) failed: %v", id, err)
	}
	if err := h.Advance(id, StateInstalled); err != nil {
		t.Fatalf("Advance(%s, installed) failed: %v", id, err)
	}
}

// activateWorker drives an installed worker to activated and claims the page.
func activateWorker(t *testing.T, h *Host, id string) {
	t.Helper()
	for _, st := range []LifecycleState{StateActivating, StateActivated} {
		if err := h.Advance(id, st); err != nil {
			t.Fatalf("Advance(%s, %s) failed: %v", id, st, err)
		}
	}
	if err := h.Claim(id); err != nil {
		t.Fatalf("Claim(%s) failed: %v", id, err)
	}
}
