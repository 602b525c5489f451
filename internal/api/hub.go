package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cascade/internal/grid"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	EventHello  = "hello"
	EventChange = "change"
)

// Event — сообщение потока /api/grid/events
type Event struct {
	Type      string       `json:"type"`
	Rows      int          `json:"rows,omitempty"`
	Hierarchy string       `json:"hierarchy,omitempty"`
	Change    *grid.Change `json:"change,omitempty"`
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Hub рассылает уведомления о перерисовке. Publish не блокируется:
// клиент с переполненным буфером отключается.
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	closed   bool
	upgrader websocket.Upgrader
	log      *log.Entry
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func NewHub(l *log.Entry) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: l,
	}
}

func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("marshal event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("remote", c.remote).Warn("slow websocket client dropped")
			h.dropLocked(c)
		}
	}
}

func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients — число подключённых клиентов
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve поднимает websocket и блокируется до отключения клиента.
// join регистрирует клиента; false означает, что хаб уже закрыт.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, join func(*wsClient) bool) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer), remote: conn.RemoteAddr().String()}
	if !join(c) {
		_ = conn.Close()
		return
	}
	h.log.WithField("remote", c.remote).Debug("websocket client connected")

	go h.writePump(c)
	h.readPump(c)
}

// add ставит hello в очередь клиента и регистрирует его одним шагом:
// hello уходит первым, раньше любого изменения.
func (h *Hub) add(c *wsClient, hello Event) bool {
	data, err := json.Marshal(hello)
	if err != nil {
		h.log.WithError(err).Error("marshal event")
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	c.send <- data
	h.clients[c] = struct{}{}
	return true
}

// readPump нужен только для control-фреймов и обнаружения разрыва
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(c)
		h.mu.Unlock()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close отключает всех клиентов; новые подключения после этого отклоняются
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}
