package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"latksync/internal/socketio"
)

const (
	WriteWait      = 10 * time.Second // max time to write a frame to the peer
	MaxMessageSize = 1024 * 1024      // largest frame accepted from a client
	SendBufferSize = 256              // frames queued per client before sends fail
)

var (
	ErrClientClosed = errors.New("client is closed")
	ErrSendBuffer   = errors.New("client send buffer is full")
)

// Client is one Socket.IO session in a room.
type Client struct {
	ID       string
	Room     string
	Identity Identity

	conn    *websocket.Conn
	hub     *Hub
	send    chan string
	done    chan struct{}
	limiter *rate.Limiter

	pingInterval time.Duration
	pingTimeout  time.Duration

	closeOnce sync.Once
}

func newClient(id, room string, identity Identity, conn *websocket.Conn, hub *Hub, opts Options) *Client {
	return &Client{
		ID:           id,
		Room:         room,
		Identity:     identity,
		conn:         conn,
		hub:          hub,
		send:         make(chan string, SendBufferSize),
		done:         make(chan struct{}),
		limiter:      rate.NewLimiter(opts.MessageRate, opts.MessageBurst),
		pingInterval: opts.PingInterval,
		pingTimeout:  opts.PingTimeout,
	}
}

// Send queues a complete Engine.IO frame without blocking.
func (c *Client) Send(frame string) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBuffer
	}
}

// sendWait queues frame, waiting for buffer space.
func (c *Client) sendWait(ctx context.Context, frame string) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the session. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadPump reads frames until the connection fails or the client leaves, then
// removes the client from its room.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Leave(c)
		c.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	deadline := c.pingInterval + c.pingTimeout
	c.conn.SetReadDeadline(time.Now().Add(deadline))

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Info("client_read_error", "client_id", c.ID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case socketio.EnginePong, socketio.EngineNoop:
		case socketio.EnginePing:
			c.Send(string(socketio.EnginePong) + string(msg[1:]))
		case socketio.EngineClose:
			return
		case socketio.EngineMessage:
			if !c.handlePacket(ctx, string(msg[1:])) {
				return
			}
		default:
			c.hub.logger.Warn("unknown_engine_packet", "client_id", c.ID, "type", string(msg[0]))
		}
	}
}

// handlePacket reports false when the client asked to disconnect.
func (c *Client) handlePacket(ctx context.Context, raw string) bool {
	p, err := socketio.ParsePacket(raw)
	if err != nil {
		c.hub.logger.Warn("invalid_packet_received", "client_id", c.ID, "error", err)
		return true
	}

	switch p.Type {
	case socketio.PacketDisconnect:
		c.hub.logger.Info("client_disconnected", "client_id", c.ID)
		return false
	case socketio.PacketEvent:
	default:
		return true
	}

	if !c.limiter.Allow() {
		c.hub.logger.Warn("rate_limit_exceeded", "client_id", c.ID)
		c.ack(p, map[string]string{"error": "rate limit exceeded"})
		return true
	}

	name, args, err := p.Event()
	if err != nil {
		c.hub.logger.Warn("invalid_event_received", "client_id", c.ID, "error", err)
		return true
	}
	c.hub.HandleEvent(ctx, c, p, name, args)
	return true
}

// ack answers p when it carried an ack id.
func (c *Client) ack(p socketio.Packet, args ...any) {
	if p.ID < 0 {
		return
	}
	reply, err := socketio.AckPacket(p.Namespace, p.ID, args...)
	if err != nil {
		c.hub.logger.Error("ack_encode_failed", "client_id", c.ID, "error", err)
		return
	}
	c.Send(reply.Frame())
}

// WritePump writes queued frames and pings the client every pingInterval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(string(socketio.EnginePing)); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frame string) error {
	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.hub.logger.Info("client_write_failed", "client_id", c.ID, "error", err)
		return err
	}
	return nil
}
