package relaywire

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chainrelay/chainrelay/metrics"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = (pongTimeout * 9) / 10
	outboxDepth   = 256
	maxSubsPerOne = 20
)

// conn holds one client's websocket connection and its open subscriptions.
// gorilla/websocket permits at most one concurrent writer per connection,
// so all writes to ws go through the outbox channel, drained by exactly one
// goroutine (writePump); reads happen on a second, dedicated goroutine
// (readPump).
type conn struct {
	ws     *websocket.Conn
	log    zerolog.Logger
	scope  metrics.Scope
	outbox chan []byte

	mu     sync.Mutex
	closed bool
	subs   map[string][]clientFilter
}

func newConn(ws *websocket.Conn, log zerolog.Logger, scope metrics.Scope) *conn {
	return &conn{
		ws:     ws,
		log:    log,
		scope:  scope,
		outbox: make(chan []byte, outboxDepth),
		subs:   make(map[string][]clientFilter),
	}
}

func (c *conn) send(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbox <- b:
		c.scope.Inc("messages_out", 1)
	default:
		c.log.Warn().Msg("outbox full, dropping connection")
		_ = c.ws.Close()
	}
}

// shutdown closes the outbox exactly once; later sends become no-ops.
func (c *conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

func (c *conn) setSub(id string, filters []clientFilter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.subs[id]; !exists && len(c.subs) >= maxSubsPerOne {
		return false
	}
	c.subs[id] = filters
	return true
}

func (c *conn) dropSub(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// forEachSub calls fn for a snapshot of the connection's open subscriptions,
// taken under lock so the caller can safely run match logic without racing
// setSub/dropSub.
func (c *conn) forEachSub(fn func(id string, filters []clientFilter)) {
	c.mu.Lock()
	snapshot := make(map[string][]clientFilter, len(c.subs))
	for id, f := range c.subs {
		snapshot[id] = f
	}
	c.mu.Unlock()
	for id, f := range snapshot {
		fn(id, f)
	}
}

// writePump is the sole goroutine permitted to call ws.WriteMessage; it
// drains outbox until the connection closes, also sending periodic pings to
// detect dead peers.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump runs the read loop: decode a frame, dispatch it via handle, and
// repeat until the client disconnects or sends something the connection
// cannot recover from.
func (c *conn) readPump(ctx context.Context, h *handler) {
	c.ws.SetReadLimit(h.maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(ctx, c, raw)
	}
}
