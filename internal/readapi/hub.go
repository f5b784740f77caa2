package readapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub fans out newly finalized offers to every connected dashboard client.
type hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	broadcast chan []byte
	logger    *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, 256),
		logger:    logger,
	}
}

// run fans each broadcast message out to the registered clients, dropping
// any client whose send buffer is full. Clients are added by serveWS and
// removed by disconnect, both under mu.
func (h *hub) run() {
	for msg := range h.broadcast {
		h.mu.RLock()
		for c := range h.clients {
			select {
			case c.send <- msg:
			default:
				close(c.send)
				delete(h.clients, c)
			}
		}
		h.mu.RUnlock()
	}
}

// broadcastOffer publishes a finalized offer to every connected client.
func (h *hub) broadcastOffer(offer offerView) {
	data, err := json.Marshal(offer)
	if err != nil {
		h.logger.Error("readapi: encode offer for broadcast", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("readapi: broadcast channel full, dropping update")
	}
}

// serveWS upgrades the connection and pumps broadcast messages to it until
// the client disconnects.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("readapi: websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.readPump(c)
	go h.writePump(c)
}

func (h *hub) readPump(c *client) {
	defer h.disconnect(c)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *hub) disconnect(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
