package stroke

import (
	"errors"
	"time"
)

// Stroke model shared by the bridge, the canvas and the relay.
// A stroke is one continuous polyline drawn on a single animation frame.

var (
	ErrEmptyStroke    = errors.New("stroke has no points")
	ErrNotBatch       = errors.New("document is not a stroke batch")
	ErrNotStroke      = errors.New("document is not a stroke object")
	ErrMissingPoints  = errors.New("stroke has no points array")
	ErrMalformedPoint = errors.New("malformed point")
)

// Point is a position in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale returns p with every coordinate multiplied by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Color is an RGB triple, usually in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

type Stroke struct {
	Index  int     `json:"index"`  // animation frame the stroke belongs to
	Color  Color   `json:"color"`  // brush color
	Points []Point `json:"points"` // drawn path, in order
}

// Len returns the number of points in the stroke.
func (s Stroke) Len() int {
	return len(s.Points)
}

// Clone returns a copy that shares no memory with s.
func (s Stroke) Clone() Stroke {
	out := s
	out.Points = append([]Point(nil), s.Points...)
	return out
}

// Rejection records one element dropped while decoding.
// Point is -1 when the whole stroke was dropped.
type Rejection struct {
	Stroke int
	Point  int
	Err    error
}

// Batch is one inbound server push: every stroke decoded from a single message.
type Batch struct {
	Strokes  []Stroke
	Rejected []Rejection
}

// Index returns the frame index of the first stroke, or -1 for an empty batch.
func (b Batch) Index() int {
	if len(b.Strokes) == 0 {
		return -1
	}
	return b.Strokes[0].Index
}

// Consistent reports whether every stroke in the batch carries the same index.
func (b Batch) Consistent() bool {
	for _, s := range b.Strokes {
		if s.Index != b.Strokes[0].Index {
			return false
		}
	}
	return true
}

// CurveOptions are sink-side policy values passed through untouched.
type CurveOptions struct {
	KillStrokes bool          // expire strokes after StrokeLife
	StrokeLife  time.Duration // lifetime of an expiring stroke
}

// Sink materializes strokes, e.g. a drawing canvas or a renderer.
type Sink interface {
	MakeCurve(s Stroke, opts CurveOptions)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s Stroke, opts CurveOptions)

func (f SinkFunc) MakeCurve(s Stroke, opts CurveOptions) {
	f(s, opts)
}

// Deliver forwards every stroke of b to sink in order and returns how many were sent.
func Deliver(b Batch, sink Sink, opts CurveOptions) int {
	if sink == nil {
		return 0
	}
	for _, s := range b.Strokes {
		sink.MakeCurve(s, opts)
	}
	return len(b.Strokes)
}
