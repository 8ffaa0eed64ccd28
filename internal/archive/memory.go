package archive

import (
	"context"
	"sort"
	"sync"

	"latksync/internal/stroke"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]map[int][]stroke.Stroke
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]map[int][]stroke.Stroke)}
}

func (m *MemoryStore) Append(ctx context.Context, room string, s stroke.Stroke) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.appendLocked(room, s)
	return nil
}

func (m *MemoryStore) AppendBatch(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, e := range entries {
		m.appendLocked(e.Room, e.Stroke)
	}
	return nil
}

func (m *MemoryStore) appendLocked(room string, s stroke.Stroke) {
	frames, ok := m.rooms[room]
	if !ok {
		frames = make(map[int][]stroke.Stroke)
		m.rooms[room] = frames
	}
	frames[s.Index] = append(frames[s.Index], s.Clone())
}

func (m *MemoryStore) Frame(ctx context.Context, room string, index int) ([]stroke.Stroke, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	src := m.rooms[room][index]
	out := make([]stroke.Stroke, len(src))
	for i, s := range src {
		out[i] = s.Clone()
	}
	return out, nil
}

func (m *MemoryStore) Indices(ctx context.Context, room string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]int, 0, len(m.rooms[room]))
	for idx := range m.rooms[room] {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
