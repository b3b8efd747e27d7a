package workerlink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/offlinekit/worker"
)

var quietLogger = log.New(io.Discard)

// runtimeServer accepts one link and hands it to serve.
func runtimeServer(t *testing.T, serve func(*Link)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l, err := Accept(w, r, quietLogger)
		if err != nil {
			t.Errorf("Accept failed: %v", err)
			return
		}
		defer l.Close()
		serve(l)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLink_RoundTrip(t *testing.T) {
	received := make(chan worker.Message, 1)
	clientIDs := make(chan string, 1)

	url := runtimeServer(t, func(l *Link) {
		clientIDs <- l.ID()
		_ = l.Send(worker.NetworkStatus{Online: false})
		_ = l.Send(worker.SyncReport{Status: worker.SyncSyncing, Pending: 2})
		_ = l.Listen(context.Background(), func(m worker.Message) {
			received <- m
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link, err := Dial(ctx, url, quietLogger)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer link.Close()

	if id := <-clientIDs; id != link.ID() {
		t.Errorf("server saw client id %q, want %q", id, link.ID())
	}

	got := make(chan worker.Message, 4)
	go func() {
		_ = link.Listen(ctx, func(m worker.Message) { got <- m })
	}()

	if m := <-got; m != (worker.NetworkStatus{Online: false}) {
		t.Errorf("first message = %#v", m)
	}
	if m := <-got; m != (worker.SyncReport{Status: worker.SyncSyncing, Pending: 2}) {
		t.Errorf("second message = %#v", m)
	}

	if err := link.Send(worker.ActivateWaiting{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case m := <-received:
		if m != (worker.ActivateWaiting{}) {
			t.Errorf("runtime received %#v", m)
		}
	case <-ctx.Done():
		t.Fatal("runtime never received the activation request")
	}
}

func TestLink_DropsUnknownMessages(t *testing.T) {
	url := runtimeServer(t, func(l *Link) {
		l.writeMu.Lock()
		_ = l.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SKIP_WAITING"}`))
		_ = l.conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		l.writeMu.Unlock()
		_ = l.Send(worker.SyncComplete{Tag: "outbox"})
		time.Sleep(50 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link, err := Dial(ctx, url, quietLogger)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer link.Close()

	var msgs []worker.Message
	err = link.Listen(ctx, func(m worker.Message) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0] != (worker.SyncComplete{Tag: "outbox"}) {
		t.Errorf("messages = %#v, want only the sync completion", msgs)
	}
}

func TestLink_ListenStopsWithContext(t *testing.T) {
	url := runtimeServer(t, func(l *Link) {
		_ = l.Listen(context.Background(), func(worker.Message) {})
	})

	link, err := Dial(context.Background(), url, quietLogger)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Listen(ctx, func(worker.Message) {}) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Listen = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not stop")
	}

	if err := link.Send(worker.ActivateWaiting{}); err == nil {
		t.Error("Send after close should fail")
	}
}
