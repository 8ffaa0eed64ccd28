package input

import (
	"latksync/internal/stroke"
)

// DefaultZPos is the depth in front of the camera at which pointer strokes are drawn.
const DefaultZPos = 1.0

// Projector maps a screen position to world space at a given depth.
type Projector interface {
	ScreenToWorld(x, y, depth float64) stroke.Point
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc func(x, y, depth float64) stroke.Point

func (f ProjectorFunc) ScreenToWorld(x, y, depth float64) stroke.Point {
	return f(x, y, depth)
}

// PointerState is one tick of pointer input.
type PointerState struct {
	X, Y    float64 // screen position
	Pressed bool    // primary button held
	OverUI  bool    // pointer is captured by an interface element
}

// PointerCapture draws while the primary button is held and sends the stroke
// when it is released.
type PointerCapture struct {
	canvas    Canvas
	projector Projector
	sender    StrokeSender
	ZPos      float64
}

func NewPointerCapture(canvas Canvas, projector Projector, sender StrokeSender) *PointerCapture {
	return &PointerCapture{
		canvas:    canvas,
		projector: projector,
		sender:    sender,
		ZPos:      DefaultZPos,
	}
}

// Update consumes one tick of pointer state. It returns an error only when a
// finished stroke could not be sent.
func (p *PointerCapture) Update(st PointerState) error {
	if st.Pressed && !st.OverUI {
		if !p.canvas.Drawing() {
			p.canvas.BeginStroke()
		}
		p.canvas.AddPoint(p.projector.ScreenToWorld(st.X, st.Y, p.ZPos))
		return nil
	}

	if !p.canvas.Drawing() {
		return nil
	}
	s, ok := p.canvas.EndStroke()
	if !ok || p.sender == nil {
		return nil
	}
	if err := p.sender.SendStroke(s.Points); err != nil && !ignorable(err) {
		return err
	}
	return nil
}
