package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sirojiddin1dev/carinfopro/internal/config"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

var ErrSendBufferFull = errors.New("send buffer full")

// Client is one websocket connection. The send queue is never closed;
// shutdown is signalled through done.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	config config.WebSocketConfig

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, size),
		done:   make(chan struct{}),
		config: cfg,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Deliver queues data for the write pump without blocking.
func (c *Client) Deliver(data []byte) bool {
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

// Send marshals v and queues it.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !c.Deliver(data) {
		return ErrSendBufferFull
	}
	return nil
}

// Close asks the write pump to send a close frame with code and reason and
// drop the connection. Only the first call has any effect.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// Done is closed once the client starts shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump feeds text frames to handler until the connection fails or the
// client is closed. It runs on the caller's goroutine.
func (c *Client) ReadPump(handler func([]byte)) {
	defer c.Close(websocket.CloseNormalClosure, "")

	if c.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.config.MaxMessageSize)
	}
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldSessionID, c.id).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		handler(message)
	}
}

func (c *Client) extendReadDeadline() {
	if c.config.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	}
}

// WritePump drains the send queue to the connection and keeps it alive
// with pings. On close it flushes what is queued, sends the close frame and
// closes the connection.
func (c *Client) WritePump() {
	interval := c.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			c.flush()
			c.writeClose(c.closeCode, c.closeReason)
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(message []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *Client) writeClose(code int, reason string) {
	if code == websocket.CloseAbnormalClosure || code == 0 {
		// 1006 must never be sent on the wire.
		return
	}
	deadline := time.Now().Add(c.writeWait())
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (c *Client) writeWait() time.Duration {
	if c.config.WriteWait > 0 {
		return c.config.WriteWait
	}
	return 10 * time.Second
}

// Reject refuses a freshly upgraded connection with an application close
// code and closes it.
func Reject(conn *websocket.Conn, code int, reason string, writeWait time.Duration) {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	conn.Close()
}
