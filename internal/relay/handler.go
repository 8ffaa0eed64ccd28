package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"latksync/internal/socketio"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// drawing clients connect from anywhere
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errRefused = errors.New("connection refused")

// WSHandler upgrades Engine.IO websocket requests, runs the Socket.IO
// handshake and attaches the session to its room. Session goroutines live
// until the connection closes or ctx is done.
func WSHandler(ctx context.Context, hub *Hub, auth *Authenticator, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("EIO") != "4" || c.Query("transport") != "websocket" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 0, "message": "Transport unknown"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket_upgrade_failed", "remote_addr", c.ClientIP(), "error", err)
			return
		}

		sid, namespace, identity, err := handshake(conn, auth, opts)
		if err != nil {
			hub.logger.Warn("handshake_failed", "remote_addr", c.ClientIP(), "error", err)
			conn.Close()
			return
		}

		room := c.Query("room")
		if room == "" {
			room = DefaultRoom
		}
		client := newClient(sid, room, identity, conn, hub, opts)
		hub.Join(client)
		// ack only once broadcasts can reach the client
		if err := writeFrame(conn, socketio.ConnectAckPacket(namespace, sid).Frame()); err != nil {
			hub.Leave(client)
			client.Close()
			return
		}
		hub.logger.Info("client_connected",
			"client_id", client.ID,
			"room", room,
			"user_id", identity.UserID,
			"remote_addr", c.ClientIP(),
		)

		go client.WritePump()
		go func() {
			if _, err := hub.Replay(ctx, client); err != nil {
				hub.logger.Warn("replay_failed", "client_id", client.ID, "error", err)
			}
		}()
		go client.ReadPump(ctx)
	}
}

// handshake sends the open packet and waits for the client's CONNECT. It
// returns the new session id, the namespace and the authenticated identity;
// the caller sends the CONNECT ack.
func handshake(conn *websocket.Conn, auth *Authenticator, opts Options) (string, string, Identity, error) {
	engineSID := uuid.NewString()
	open, err := socketio.OpenFrame(socketio.Handshake{
		SID:          engineSID,
		PingInterval: int(opts.PingInterval / time.Millisecond),
		PingTimeout:  int(opts.PingTimeout / time.Millisecond),
		MaxPayload:   MaxMessageSize,
	})
	if err != nil {
		return "", "", Identity{}, err
	}
	if err := writeFrame(conn, open); err != nil {
		return "", "", Identity{}, err
	}

	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(opts.HandshakeTimeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return "", "", Identity{}, fmt.Errorf("read connect: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case socketio.EnginePing:
			if err := writeFrame(conn, string(socketio.EnginePong)+string(msg[1:])); err != nil {
				return "", "", Identity{}, err
			}
			continue
		case socketio.EngineClose:
			return "", "", Identity{}, errors.New("client closed during handshake")
		case socketio.EngineMessage:
		default:
			continue
		}

		p, err := socketio.ParsePacket(string(msg[1:]))
		if err != nil {
			return "", "", Identity{}, fmt.Errorf("parse connect: %w", err)
		}
		if p.Type != socketio.PacketConnect {
			continue
		}
		if p.Namespace != socketio.DefaultNamespace {
			refuse(conn, p.Namespace, "Invalid namespace")
			return "", "", Identity{}, fmt.Errorf("%w: namespace %s", errRefused, p.Namespace)
		}

		identity := anonymous
		if auth != nil {
			var body struct {
				Token string `json:"token"`
			}
			json.Unmarshal(p.Data, &body)
			id, err := auth.ValidateToken(body.Token)
			if err != nil {
				refuse(conn, p.Namespace, "unauthorized")
				return "", "", Identity{}, fmt.Errorf("%w: %v", errRefused, err)
			}
			identity = id
		}

		return uuid.NewString(), p.Namespace, identity, nil
	}
}

func refuse(conn *websocket.Conn, namespace, message string) {
	writeFrame(conn, socketio.ConnectErrorPacket(namespace, message).Frame())
}

func writeFrame(conn *websocket.Conn, frame string) error {
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}
