// Package workerlink carries the worker message protocol over a websocket,
// connecting the page side to a worker runtime running out of process.
package workerlink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/offlinekit/worker"
)

// ClientIDHeader carries the client id on the upgrade request.
const ClientIDHeader = "X-Client-ID"

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Link is one websocket connection speaking the worker protocol.
type Link struct {
	conn   *websocket.Conn
	id     string
	logger *log.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the worker runtime at url.
func Dial(ctx context.Context, url string, logger *log.Logger) (*Link, error) {
	id := uuid.NewString()
	header := http.Header{}
	header.Set(ClientIDHeader, id)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newLink(conn, id, logger), nil
}

// Accept upgrades an HTTP request into a Link, for the runtime side.
func Accept(w http.ResponseWriter, r *http.Request, logger *log.Logger) (*Link, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	id := r.Header.Get(ClientIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	return newLink(conn, id, logger), nil
}

func newLink(conn *websocket.Conn, id string, logger *log.Logger) *Link {
	if logger == nil {
		logger = log.Default().WithPrefix("link")
	}
	return &Link{conn: conn, id: id, logger: logger.With("client", id)}
}

// ID returns the client id of the connection.
func (l *Link) ID() string {
	return l.id
}

// Send writes one message.
func (l *Link) Send(m worker.Message) error {
	data, err := worker.Encode(m)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return worker.ErrChannelClosed
		}
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	return nil
}

// Listen reads messages and passes each decoded one to handle until ctx is
// done or the connection closes. Messages that fail to decode are logged
// and dropped.
func (l *Link) Listen(ctx context.Context, handle func(worker.Message)) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		kind, data, err := l.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage {
			l.logger.Warn("dropping non-text frame", "kind", kind)
			continue
		}

		m, err := worker.Decode(data)
		if err != nil {
			l.logger.Warn("dropping message", "err", err)
			continue
		}
		handle(m)
	}
}

// Close sends a close frame and closes the connection.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.writeMu.Lock()
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		l.writeMu.Unlock()
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}
