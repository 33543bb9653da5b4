package handlers

import (
	"net/http"
	"sync"
	"time"

	"smartdoor/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB

	// Per-subscriber buffer. A client that cannot drain this fast loses
	// messages rather than stalling the dispatch path.
	subscriberBuffer = 64
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	TS   time.Time   `json:"ts"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans live events (serial lines, door state, face status, overlays)
// out to every connected websocket client. Broadcast never blocks: slow
// subscribers drop messages.
type Hub struct {
	log *logger.Logger

	mu   sync.Mutex
	subs map[chan wsEnvelope]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{log: log, subs: make(map[chan wsEnvelope]struct{})}
}

// Broadcast delivers one typed event to all subscribers.
func (hub *Hub) Broadcast(msgType string, data interface{}) {
	env := wsEnvelope{Type: msgType, Data: data, TS: time.Now().UTC()}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range hub.subs {
		select {
		case ch <- env:
		default:
			// full buffer: drop for this subscriber
		}
	}
}

func (hub *Hub) subscribe() chan wsEnvelope {
	ch := make(chan wsEnvelope, subscriberBuffer)
	hub.mu.Lock()
	hub.subs[ch] = struct{}{}
	hub.mu.Unlock()
	return ch
}

func (hub *Hub) unsubscribe(ch chan wsEnvelope) {
	hub.mu.Lock()
	delete(hub.subs, ch)
	hub.mu.Unlock()
}

func (h *Handler) wsConnect(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	events := h.hub.subscribe()
	defer h.hub.unsubscribe(events)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Send the current door snapshot immediately so clients do not wait
	// for the next event.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wsEnvelope{Type: "door_state", Data: h.doorStateBody(), TS: time.Now().UTC()}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case env := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}
