package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

const (
	writeTimeout = 5 * time.Second
	clientBuffer = 64
)

// Broadcaster streams messages as JSON text frames to every connected
// websocket client. A client that falls behind by more than its buffer
// loses messages rather than slowing the publisher.
type Broadcaster struct {
	opts *websocket.AcceptOptions

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewBroadcaster creates a broadcaster. originPatterns are passed to
// websocket.Accept; none means same-origin only.
func NewBroadcaster(originPatterns ...string) *Broadcaster {
	return &Broadcaster{
		opts:    &websocket.AcceptOptions{OriginPatterns: originPatterns},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// disconnects or the broadcaster closes.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, b.opts)
	if err != nil {
		core.Logger().Debug("diagnostics upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, c)
		b.mu.Unlock()
	}()

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-c.done:
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish queues m for every client. It never blocks.
func (b *Broadcaster) Publish(m *core.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		core.Logger().Warn("encoding diagnostic message", zap.Error(err))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			core.Logger().Debug("diagnostics client behind, dropping message")
		}
	}
}

// Close disconnects every client. Later connections are refused.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for c := range b.clients {
		c.stop()
	}
}
