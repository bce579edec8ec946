package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"messenger-core/internal/bus"
	"messenger-core/internal/config"
	"messenger-core/internal/models"
)

// client is one websocket connection. It implements bus.Member: Deliver
// never blocks, a full send buffer closes the connection, and eviction from a
// room closes it with CloseNotMember.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	user models.UserSummary
	cfg  config.WebSocket
	log  logrus.FieldLogger

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
	evicted     atomic.Bool
}

func newClient(conn *websocket.Conn, info ConnInfo, user models.UserSummary, cfg config.WebSocket, log logrus.FieldLogger) *client {
	return &client{
		conn: conn,
		info: info,
		user: user,
		cfg:  cfg,
		log:  log.WithFields(info.fields()),
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.info.ConnID }

func (c *client) UserID() string { return c.info.UserID }

// Evicted closes the connection once the user is no longer in the room.
// Frames already queued, including the one that removed them, are flushed first.
func (c *client) Evicted(topic bus.Topic) {
	c.evicted.Store(true)
	c.log.WithField("topic", string(topic)).Info("ws evicted")
	c.close(CloseNotMember, "no longer a room member")
}

func (c *client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.close(websocket.ClosePolicyViolation, "slow consumer")
		return false
	}
}

// sendFrame queues a frame for this connection only.
func (c *client) sendFrame(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.log.WithError(err).Error("encode frame")
		return
	}
	c.Deliver(payload)
}

// close asks the write pump to send a close frame and shut the socket.
func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// readPump feeds inbound text frames to handle until the peer goes away or
// misses its pong deadline.
func (c *client) readPump(handle func([]byte)) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.close(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		case <-c.done:
			if c.closeCode != websocket.ClosePolicyViolation {
				c.flush()
			}
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

// flush writes frames already queued before the close frame.
func (c *client) flush() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
