// Package input turns pointer and controller events into canvas strokes and
// sends finished strokes to the server.
package input

import (
	"errors"

	"latksync/internal/bridge"
	"latksync/internal/stroke"
)

// Canvas is the gesture side of a drawing surface.
type Canvas interface {
	BeginStroke()
	AddPoint(p stroke.Point) bool
	EndStroke() (stroke.Stroke, bool)
	Drawing() bool
}

// StrokeSender publishes finished strokes. *bridge.Bridge satisfies it.
type StrokeSender interface {
	SendStroke(points []stroke.Point) error
	SendLastStroke() error
}

// ignorable reports whether err only means there was nothing to send.
func ignorable(err error) bool {
	return errors.Is(err, bridge.ErrNoStroke) || errors.Is(err, stroke.ErrEmptyStroke)
}
