package input

import (
	"math"
	"time"
)

// LEDPattern is a controller LED pattern. The clock patterns light the ring
// position of an hour and its opposite.
type LEDPattern int

const (
	LEDNone LEDPattern = 0

	Clock12     LEDPattern = 12
	Clock1And7  LEDPattern = 13
	Clock2And8  LEDPattern = 14
	Clock3And9  LEDPattern = 15
	Clock4And10 LEDPattern = 16
	Clock5And11 LEDPattern = 17
	Clock6And12 LEDPattern = 18
)

type LEDColor int

const (
	BrightCosmicPurple LEDColor = iota
	BrightMissionRed
	BrightFloridaYellow
)

type VibePattern int

const (
	VibeBuzz VibePattern = iota
	VibeForceDown
	VibeForceUp
)

type Intensity int

const (
	IntensityLow Intensity = iota
	IntensityMedium
	IntensityHigh
)

// Feedback drives controller haptics and LEDs.
type Feedback interface {
	Vibrate(p VibePattern, i Intensity)
	// StartLED shows a pattern; a zero duration keeps it on until StopLED.
	StartLED(p LEDPattern, c LEDColor, d time.Duration)
	StopLED()
}

const (
	halfHourDegrees = 15.0
	hoursPerDegree  = 12.0 / 360.0
	ledHours        = int(Clock6And12 - Clock12)
)

// TouchAngle returns the clockwise angle of a touchpad position from straight
// up, in degrees within [0, 360).
func TouchAngle(x, y float64) float64 {
	angle := math.Atan2(x, y) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle
}

// LEDIndex maps a touchpad position to the clock pattern nearest to it.
func LEDIndex(x, y float64) LEDPattern {
	hour := int((TouchAngle(x, y)+halfHourDegrees)*hoursPerDegree) % ledHours
	if hour == 0 {
		return Clock6And12
	}
	return Clock12 + LEDPattern(hour)
}

// TriggerIntensity maps an analog trigger value in [0,1] to a haptic intensity.
func TriggerIntensity(v float64) Intensity {
	i := Intensity(int(v * 2))
	if i < IntensityLow {
		return IntensityLow
	}
	if i > IntensityHigh {
		return IntensityHigh
	}
	return i
}

// Direction is a coarse touchpad direction.
type Direction int

const (
	DirCenter Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "center"
	}
}

// PadLimit is the touchpad deflection (and force) past which a direction or a
// press registers.
const PadLimit = 0.6

// PadDirection returns the direction a touchpad position points to. The
// horizontal axis wins when both pass PadLimit.
func PadDirection(x, y float64) Direction {
	switch {
	case x > PadLimit:
		return DirRight
	case x < -PadLimit:
		return DirLeft
	case y > PadLimit:
		return DirUp
	case y < -PadLimit:
		return DirDown
	default:
		return DirCenter
	}
}
