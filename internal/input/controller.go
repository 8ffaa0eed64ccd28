package input

import (
	"log/slog"
	"sync"

	"latksync/internal/stroke"
)

type Button int

const (
	ButtonBumper Button = iota
	ButtonHome
)

// Touch is one touchpad sample. Force is the pressure in [0,1].
type Touch struct {
	Active bool
	X, Y   float64
	Force  float64
}

// ControllerAdapter draws with a tracked 6DoF controller: the trigger draws,
// the bumper is a menu button and the touchpad lights the LED ring.
type ControllerAdapter struct {
	id       byte
	canvas   Canvas
	sender   StrokeSender
	feedback Feedback
	logger   *slog.Logger

	mu           sync.Mutex
	triggerHeld  bool
	bumperHeld   bool
	padPressed   bool
	padDirection Direction
	lastLED      LEDPattern
	ledLit       bool
}

func NewControllerAdapter(id byte, canvas Canvas, sender StrokeSender, feedback Feedback) *ControllerAdapter {
	return &ControllerAdapter{
		id:       id,
		canvas:   canvas,
		sender:   sender,
		feedback: feedback,
		logger:   slog.Default().With("component", "controller", "controller_id", id),
	}
}

// TriggerDown starts a stroke. Events from other controllers are ignored.
func (a *ControllerAdapter) TriggerDown(id byte, value float64) {
	if id != a.id {
		return
	}
	a.vibrate(VibeBuzz, TriggerIntensity(value))

	a.mu.Lock()
	a.triggerHeld = true
	a.mu.Unlock()
	a.canvas.BeginStroke()
}

// Move feeds the controller position; it extends the stroke while the trigger is held.
func (a *ControllerAdapter) Move(p stroke.Point) {
	a.mu.Lock()
	held := a.triggerHeld
	a.mu.Unlock()
	if held {
		a.canvas.AddPoint(p)
	}
}

// TriggerUp finishes the stroke and sends it. Nothing to send is not an error.
func (a *ControllerAdapter) TriggerUp(id byte, value float64) error {
	if id != a.id {
		return nil
	}
	a.vibrate(VibeBuzz, TriggerIntensity(value))

	a.mu.Lock()
	a.triggerHeld = false
	a.mu.Unlock()

	a.canvas.EndStroke()
	if a.sender == nil {
		return nil
	}
	if err := a.sender.SendLastStroke(); err != nil && !ignorable(err) {
		a.logger.Warn("stroke_send_failed", "error", err)
		return err
	}
	return nil
}

func (a *ControllerAdapter) ButtonDown(id byte, b Button) {
	if id != a.id || b != ButtonBumper {
		return
	}
	a.vibrate(VibeForceDown, IntensityMedium)
	a.mu.Lock()
	a.bumperHeld = true
	a.mu.Unlock()
}

func (a *ControllerAdapter) ButtonUp(id byte, b Button) {
	if id != a.id || b != ButtonBumper {
		return
	}
	a.vibrate(VibeForceUp, IntensityMedium)
	a.mu.Lock()
	a.bumperHeld = false
	a.mu.Unlock()
}

// UpdateTouch runs once per tick with the current touchpad sample. The LED
// pattern is only restarted when the lit position changes.
func (a *ControllerAdapter) UpdateTouch(t Touch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.padPressed = t.Force > PadLimit
	a.padDirection = DirCenter

	if !t.Active {
		if a.ledLit {
			if a.feedback != nil {
				a.feedback.StopLED()
			}
			a.ledLit = false
		}
		return
	}

	a.padDirection = PadDirection(t.X, t.Y)
	idx := LEDIndex(t.X, t.Y)
	if a.ledLit && idx == a.lastLED {
		return
	}
	if a.feedback != nil {
		a.feedback.StartLED(idx, BrightCosmicPurple, 0)
	}
	a.lastLED = idx
	a.ledLit = true
}

// ControllerState is a snapshot of the adapter's button state.
type ControllerState struct {
	TriggerHeld  bool
	BumperHeld   bool
	PadPressed   bool
	PadDirection Direction
	LED          LEDPattern // LEDNone when the ring is dark
}

func (a *ControllerAdapter) State() ControllerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := ControllerState{
		TriggerHeld:  a.triggerHeld,
		BumperHeld:   a.bumperHeld,
		PadPressed:   a.padPressed,
		PadDirection: a.padDirection,
	}
	if a.ledLit {
		st.LED = a.lastLED
	}
	return st
}

func (a *ControllerAdapter) vibrate(p VibePattern, i Intensity) {
	if a.feedback != nil {
		a.feedback.Vibrate(p, i)
	}
}
