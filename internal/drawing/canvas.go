package drawing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"latksync/internal/stroke"
)

var ErrNoLayer = errors.New("layer does not exist")

// Entry is a stroke stored on the canvas.
type Entry struct {
	ID      string
	Stroke  stroke.Stroke
	Remote  bool      // received through MakeCurve
	Expires time.Time // zero when the stroke never expires
}

type layer struct {
	name         string
	currentFrame int
	frames       map[int][]Entry
}

// Canvas holds layers of animation frames of strokes. Local gestures and
// inbound strokes both land here, so every method is safe for concurrent use.
type Canvas struct {
	mu           sync.RWMutex
	layers       []*layer
	currentLayer int
	color        stroke.Color

	drawing bool
	pending []stroke.Point
	last    *stroke.Stroke

	now    func() time.Time
	logger *slog.Logger
}

// NewCanvas creates a canvas with one empty layer.
func NewCanvas(color stroke.Color) *Canvas {
	c := &Canvas{
		color:  color,
		now:    time.Now,
		logger: slog.Default().With("component", "canvas"),
	}
	c.layers = append(c.layers, newLayer("Layer 1"))
	return c
}

func newLayer(name string) *layer {
	return &layer{name: name, frames: make(map[int][]Entry)}
}

// SetClock replaces the time source used for stroke expiry.
func (c *Canvas) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// AddLayer appends a layer and returns its position.
func (c *Canvas) AddLayer(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers = append(c.layers, newLayer(name))
	return len(c.layers) - 1
}

func (c *Canvas) LayerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}

func (c *Canvas) CurrentLayer() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentLayer
}

func (c *Canvas) SetCurrentLayer(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.layers) {
		return fmt.Errorf("select layer %d: %w", i, ErrNoLayer)
	}
	c.currentLayer = i
	return nil
}

// CurrentFrame returns the frame shown on the current layer.
func (c *Canvas) CurrentFrame() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers[c.currentLayer].currentFrame
}

func (c *Canvas) SetCurrentFrame(frame int) error {
	if frame < 0 {
		return fmt.Errorf("invalid frame %d", frame)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers[c.currentLayer].currentFrame = frame
	return nil
}

func (c *Canvas) MainColor() stroke.Color {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.color
}

func (c *Canvas) SetMainColor(color stroke.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = color
}

// MakeCurve stores an inbound stroke on the current layer at the stroke's own
// frame index.
func (c *Canvas) MakeCurve(s stroke.Stroke, opts stroke.CurveOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{ID: uuid.NewString(), Stroke: s.Clone(), Remote: true}
	if opts.KillStrokes && opts.StrokeLife > 0 {
		e.Expires = c.now().Add(opts.StrokeLife)
	}
	l := c.layers[c.currentLayer]
	l.frames[s.Index] = append(l.frames[s.Index], e)
	c.logger.Debug("curve_added", "id", e.ID, "frame", s.Index, "points", s.Len())
}

// BeginStroke starts a local gesture, discarding any unfinished one.
func (c *Canvas) BeginStroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawing = true
	c.pending = nil
}

// AddPoint extends the gesture in progress. It reports false when no gesture
// has been started.
func (c *Canvas) AddPoint(p stroke.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.drawing {
		return false
	}
	c.pending = append(c.pending, p)
	return true
}

// Drawing reports whether a local gesture is in progress.
func (c *Canvas) Drawing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.drawing
}

// EndStroke finishes the local gesture and stores it on the current frame with
// the main color. A gesture without points stores nothing and reports false.
func (c *Canvas) EndStroke() (stroke.Stroke, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	points := c.pending
	c.drawing = false
	c.pending = nil
	if len(points) == 0 {
		return stroke.Stroke{}, false
	}

	l := c.layers[c.currentLayer]
	s := stroke.Stroke{Index: l.currentFrame, Color: c.color, Points: points}
	l.frames[s.Index] = append(l.frames[s.Index], Entry{ID: uuid.NewString(), Stroke: s})
	last := s.Clone()
	c.last = &last
	return s.Clone(), true
}

// LastStroke returns the most recent locally finished stroke. Inbound strokes
// never count, so they are not echoed back to the server.
func (c *Canvas) LastStroke() (stroke.Stroke, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return stroke.Stroke{}, false
	}
	return c.last.Clone(), true
}

// Strokes returns a copy of the strokes on one frame of a layer, in insertion order.
func (c *Canvas) Strokes(layerIndex, frame int) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if layerIndex < 0 || layerIndex >= len(c.layers) {
		return nil, fmt.Errorf("read layer %d: %w", layerIndex, ErrNoLayer)
	}
	src := c.layers[layerIndex].frames[frame]
	out := make([]Entry, len(src))
	for i, e := range src {
		e.Stroke = e.Stroke.Clone()
		out[i] = e
	}
	return out, nil
}

// Frames returns the frame indices of a layer that hold strokes, ascending.
func (c *Canvas) Frames(layerIndex int) ([]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if layerIndex < 0 || layerIndex >= len(c.layers) {
		return nil, fmt.Errorf("read layer %d: %w", layerIndex, ErrNoLayer)
	}
	out := make([]int, 0, len(c.layers[layerIndex].frames))
	for idx, entries := range c.layers[layerIndex].frames {
		if len(entries) > 0 {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Sweep drops every stroke that expired at or before now and returns how many
// were removed.
func (c *Canvas) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, l := range c.layers {
		for idx, entries := range l.frames {
			kept := entries[:0]
			for _, e := range entries {
				if !e.Expires.IsZero() && !e.Expires.After(now) {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) == 0 {
				delete(l.frames, idx)
				continue
			}
			l.frames[idx] = kept
		}
	}
	if removed > 0 {
		c.logger.Debug("strokes_expired", "count", removed)
	}
	return removed
}

// MinSweepInterval is the shortest interval RunSweeper ticks at.
const MinSweepInterval = 10 * time.Millisecond

// RunSweeper calls Sweep every interval until ctx is done. Intervals below
// MinSweepInterval are raised to it.
func (c *Canvas) RunSweeper(ctx context.Context, interval time.Duration) {
	interval = max(interval, MinSweepInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			now := c.now()
			c.mu.RUnlock()
			c.Sweep(now)
		}
	}
}
