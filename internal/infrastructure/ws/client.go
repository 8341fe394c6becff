package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
)

// Client is one websocket connection. It is the engine's Outbox for the
// session: frames are queued on Message and written by WriteMessage.
type Client struct {
	conn    *connWrapper
	Message chan *WSMessage
	ID      string

	opts   Options
	logger logging.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, id string, opts Options, logger logging.Logger) *Client {
	return &Client{
		conn:    newConnWrapper(conn, opts.WriteWait),
		Message: make(chan *WSMessage, opts.OutboxSize),
		ID:      id,
		opts:    opts,
		logger:  logger,
	}
}

var _ broadcast.Outbox = (*Client)(nil)

func (c *Client) Deliver(event broadcast.Event) bool {
	msg := FromEvent(event)
	if msg == nil {
		return true
	}
	return c.enqueue(msg)
}

// Close stops the write pump after it has flushed what is already queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Message)
}

// enqueue never blocks. A full queue drops the frame.
func (c *Client) enqueue(msg *WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Message <- msg:
		return true
	default:
		return false
	}
}

// ReadMessage reads frames until the connection fails or closes, passing
// each decoded frame to dispatch. Frames that are not valid JSON are answered
// with BAD_REQUEST.
func (c *Client) ReadMessage(dispatch func(*InboundMessage)) {
	c.conn.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.WebSocket, logging.Read, "websocket read failed", map[logging.ExtraKey]any{
					logging.SessionID:    c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		var in InboundMessage
		if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
			c.enqueue(NewError("", CodeBadRequest, "malformed frame"))
			continue
		}
		dispatch(&in)
	}
}

func (c *Client) WriteMessage() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Message:
			if !ok {
				_ = c.conn.WriteClose()
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.WebSocket, logging.Write, "websocket write failed", map[logging.ExtraKey]any{
					logging.SessionID:    c.ID,
					logging.EventType:    msg.Type,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-ticker.C:
			if err := c.conn.WritePing(); err != nil {
				return
			}
		}
	}
}
