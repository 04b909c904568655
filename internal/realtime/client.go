package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/pkg/streaming"
)

const maxCommandSize = 512

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// viewers connect from the public site, origin checking happens at the
	// reverse proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket viewer. A single write goroutine drains the send
// channel; the read goroutine only handles join/leave commands.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	writeWait time.Duration
	pongWait  time.Duration
}

// ServeWS upgrades an HTTP request and runs the client's pumps. It blocks
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, h.cfg)
	go c.writePump()
	c.readPump()
}

func newClient(h *Hub, conn *ws.Conn, cfg config.RealtimeConfig) *Client {
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}

	return &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		logger:    h.logger,
		writeWait: writeWait,
		pongWait:  pongWait,
	}
}

// enqueue hands a message to the write pump without blocking. Returns false
// when the client's buffer is full or the client is closed.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump consumes join/leave commands until the connection drops, then
// removes the client from all rooms.
func (c *Client) readPump() {
	defer func() {
		c.hub.Remove(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.logger.Debug("Websocket read error", "error", err)
			}
			return
		}
		c.handleCommand(string(message))
	}
}

func (c *Client) handleCommand(raw string) {
	verb, room, ok := streaming.ParseCommand(raw)
	if !ok {
		c.sendError("malformed command, expected join:<room> or leave:<room>")
		return
	}

	switch verb {
	case streaming.CmdJoin:
		if err := c.hub.Join(c, room); err != nil {
			c.sendError(err.Error())
		}
	case streaming.CmdLeave:
		c.hub.Leave(c, room)
	}
}

func (c *Client) sendError(message string) {
	raw, err := json.Marshal(streaming.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(streaming.Envelope{
		Type:    streaming.TypeError,
		Payload: raw,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// writePump writes queued messages and periodic pings. It owns all writes
// to the connection.
func (c *Client) writePump() {
	pingPeriod := c.pongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) closeAsync() {
	go c.close()
}
