// Package socket carries the editor update stream: the browser editor
// connects once per article, pushes content updates, and receives
// programmatic content replacements (initial load, clear) back.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bragi-editor/bragi/internal/draftservice"
)

// Message types on the editor socket.
const (
	// TypeUpdate carries editor content: browser → daemon on user
	// edits, daemon → browser on programmatic replacements.
	TypeUpdate = "UPDATE"
	// TypeSave asks for an immediate flush, bypassing the debounce.
	TypeSave = "SAVE"
	// TypeError reports a rejected inbound message.
	TypeError = "ERROR"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// WSMessage is the wire format on the editor socket.
type WSMessage struct {
	Type      string          `json:"type"`
	ArticleID string          `json:"article_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser editor runs on a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades editor connections.
type Handler struct {
	svc    *draftservice.Service
	logger *slog.Logger
}

// NewHandler creates a socket handler over the draft service.
func NewHandler(svc *draftservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ServeHTTP handles GET /ws?articleId=... by upgrading to a websocket
// and bridging it to the article's editor session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	articleID := r.URL.Query().Get("articleId")
	if articleID == "" {
		http.Error(w, "articleId is required", http.StatusBadRequest)
		return
	}

	session, err := h.svc.Open(r.Context(), articleID)
	if err != nil {
		http.Error(w, "failed to open draft", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("socket: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		logger:    h.logger.With(slog.String("article_id", articleID)),
		articleID: articleID,
	}

	// Send the full current content so the editor starts up to date.
	if data, err := session.GetJSON(); err == nil {
		c.enqueue(WSMessage{Type: TypeUpdate, ArticleID: articleID, Payload: data})
	}

	// Programmatic replacements (load winner, clear) push back out.
	unsubscribe := session.OnApply(func(content json.RawMessage) {
		c.enqueue(WSMessage{Type: TypeUpdate, ArticleID: articleID, Payload: content})
	})

	go c.writePump()
	c.readPump(h.svc, session)

	unsubscribe()
	c.closeSend()
}

type client struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	articleID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue marshals and queues a message, dropping it when the client
// is too slow to keep the session from blocking. An apply listener
// captured before unsubscribe can still fire after teardown, so the
// closed flag is checked under the same lock that closeSend holds.
func (c *client) enqueue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("socket: send buffer full, dropping message")
	}
}

// closeSend marks the client closed and closes the send channel so the
// write pump drains and exits. Safe to call once per connection; late
// enqueues become no-ops.
func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes inbound messages until the connection closes.
func (c *client) readPump(svc *draftservice.Service, session sessionPusher) {
	defer c.conn.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("socket: read failed", slog.String("error", err.Error()))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(WSMessage{Type: TypeError, ArticleID: c.articleID, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case TypeUpdate:
			if err := session.Push(msg.Payload); err != nil {
				c.enqueue(WSMessage{Type: TypeError, ArticleID: c.articleID, Error: err.Error()})
			}
		case TypeSave:
			if err := svc.Save(context.Background(), c.articleID); err != nil {
				c.enqueue(WSMessage{Type: TypeError, ArticleID: c.articleID, Error: err.Error()})
			}
		default:
			c.enqueue(WSMessage{Type: TypeError, ArticleID: c.articleID, Error: "unknown message type"})
		}
	}
}

// writePump writes queued messages and keeps the connection alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// sessionPusher is the slice of the editor session the socket needs.
type sessionPusher interface {
	Push(content json.RawMessage) error
}
