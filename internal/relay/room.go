package relay

import (
	"log/slog"
	"sync"
)

// DefaultRoom is joined by clients that do not name a room.
const DefaultRoom = "lobby"

// Room is a group of clients drawing on the same document.
type Room struct {
	Name    string
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRoom(name string, logger *slog.Logger) *Room {
	return &Room{
		Name:    name,
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (r *Room) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c.ID] != nil {
		r.logger.Warn("client_already_in_room", "room", r.Name, "client_id", c.ID)
		return
	}
	r.clients[c.ID] = c
	r.logger.Info("client_added_to_room", "room", r.Name, "client_id", c.ID)
}

// RemoveClient removes c and reports how many clients are left.
func (r *Room) RemoveClient(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c.ID] != nil {
		delete(r.clients, c.ID)
		r.logger.Info("client_removed_from_room", "room", r.Name, "client_id", c.ID)
	}
	return len(r.clients)
}

// Broadcast queues frame for every client except the one with id except.
// It returns the number of clients the frame was queued for.
func (r *Room) Broadcast(frame string, except string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for id, c := range r.clients {
		if id == except {
			continue
		}
		if err := c.Send(frame); err != nil {
			r.logger.Warn("failed_to_send_broadcast", "room", r.Name, "client_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Clients returns a copy of the room's client list.
func (r *Room) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}
