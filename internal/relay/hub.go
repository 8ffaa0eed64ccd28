package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"latksync/internal/archive"
	"latksync/internal/bridge"
	"latksync/internal/socketio"
	"latksync/internal/stroke"
)

var ErrNoPayload = errors.New("event has no stroke payload")

// Hub owns the rooms and routes strokes between their clients.
type Hub struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	store  archive.Store
	logger *slog.Logger
}

func NewHub(store archive.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]*Room),
		store:  store,
		logger: logger,
	}
}

// Join adds c to its room, creating the room on first use.
func (h *Hub) Join(c *Client) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.Room]
	if !ok {
		room = NewRoom(c.Room, h.logger)
		h.rooms[c.Room] = room
		h.logger.Info("room_created", "room", c.Room)
	}
	room.AddClient(c)
	return room
}

// Leave removes c from its room and drops the room once it is empty.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.Room]
	if !ok {
		return
	}
	if room.RemoveClient(c) == 0 {
		delete(h.rooms, c.Room)
		h.logger.Info("room_closed", "room", c.Room)
	}
}

func (h *Hub) Room(name string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[name]
	return room, ok
}

// Rooms returns the client count of every open room.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for name, room := range h.rooms {
		out[name] = room.ClientCount()
	}
	return out
}

// HandleEvent dispatches one client event.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, p socketio.Packet, name string, args []json.RawMessage) {
	switch name {
	case bridge.EventStrokeToServer:
		if _, err := h.HandleStroke(ctx, c, args); err != nil {
			h.logger.Warn("stroke_rejected", "client_id", c.ID, "room", c.Room, "error", err)
			c.ack(p, map[string]string{"error": err.Error()})
			return
		}
		c.ack(p, "stored")
	default:
		h.logger.Debug("unhandled_event", "client_id", c.ID, "event", name)
	}
}

// HandleStroke decodes a clientStrokeToServer payload, archives the stroke and
// forwards it to the rest of the room as a one-stroke frame.
func (h *Hub) HandleStroke(ctx context.Context, c *Client, args []json.RawMessage) (stroke.Stroke, error) {
	if len(args) == 0 {
		return stroke.Stroke{}, ErrNoPayload
	}
	doc := []byte(args[0])
	var text string
	if err := json.Unmarshal(args[0], &text); err == nil {
		doc = []byte(text)
	}

	s, rejected, err := stroke.DecodeStroke(doc, 1)
	if err != nil {
		return stroke.Stroke{}, err
	}
	if len(rejected) > 0 {
		h.logger.Warn("stroke_points_dropped", "client_id", c.ID, "count", len(rejected))
	}

	if h.store != nil {
		if err := h.store.Append(ctx, c.Room, s); err != nil {
			// live peers still get the stroke
			h.logger.Error("archive_append_failed", "room", c.Room, "frame", s.Index, "error", err)
		}
	}

	frame, err := frameEvent([]stroke.Stroke{s})
	if err != nil {
		return stroke.Stroke{}, err
	}
	if room, ok := h.Room(c.Room); ok {
		sent := room.Broadcast(frame, c.ID)
		h.logger.Debug("stroke_broadcast", "room", c.Room, "frame", s.Index, "points", s.Len(), "recipients", sent)
	}
	return s, nil
}

// Replay sends every archived frame of the client's room, one batch per frame
// index in ascending order, and returns the number of frames sent.
func (h *Hub) Replay(ctx context.Context, c *Client) (int, error) {
	if h.store == nil {
		return 0, nil
	}
	indices, err := h.store.Indices(ctx, c.Room)
	if err != nil {
		return 0, fmt.Errorf("list frames of %s: %w", c.Room, err)
	}

	sent := 0
	for _, idx := range indices {
		strokes, err := h.store.Frame(ctx, c.Room, idx)
		if err != nil {
			h.logger.Warn("replay_frame_failed", "room", c.Room, "frame", idx, "error", err)
			continue
		}
		if len(strokes) == 0 {
			continue
		}
		frame, err := frameEvent(strokes)
		if err != nil {
			h.logger.Warn("replay_frame_failed", "room", c.Room, "frame", idx, "error", err)
			continue
		}
		if err := c.sendWait(ctx, frame); err != nil {
			return sent, fmt.Errorf("replay to %s: %w", c.ID, err)
		}
		sent++
	}
	if sent > 0 {
		h.logger.Info("frames_replayed", "client_id", c.ID, "room", c.Room, "frames", sent)
	}
	return sent, nil
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var clients []*Client
	for _, room := range h.rooms {
		clients = append(clients, room.Clients()...)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
		h.logger.Info("client_connection_closed", "client_id", c.ID)
	}
}

func frameEvent(strokes []stroke.Stroke) (string, error) {
	batch, err := stroke.EncodeBatch(strokes)
	if err != nil {
		return "", err
	}
	p, err := socketio.EncodeEvent(socketio.DefaultNamespace, bridge.EventNewFrame, json.RawMessage(batch))
	if err != nil {
		return "", err
	}
	return p.Frame(), nil
}
