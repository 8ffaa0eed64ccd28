package stroke

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the general date-time form the drawing clients put in outbound messages.
const TimestampLayout = "1/2/2006 3:04:05 PM"

// Encode renders s as the outbound clientStrokeToServer document.
// The document is newline-joined, one point per line, with no trailing separator
// after the last point. Coordinates are written as-is; NaN and infinities are not
// rejected.
func Encode(s Stroke, at time.Time) ([]byte, error) {
	if len(s.Points) == 0 {
		return nil, ErrEmptyStroke
	}

	lines := make([]string, 0, len(s.Points)+7)
	lines = append(lines,
		"{",
		`"timestamp": "`+at.Format(TimestampLayout)+`",`,
		`"index": `+strconv.Itoa(s.Index)+",",
		`"color": [`+formatTriple(s.Color.R, s.Color.G, s.Color.B)+"],",
		`"points": [`,
	)
	for i, p := range s.Points {
		line := `{"co": [` + formatTriple(p.X, p.Y, p.Z) + "]}"
		if i < len(s.Points)-1 {
			line += ","
		}
		lines = append(lines, line)
	}
	lines = append(lines, "]", "}")

	return []byte(strings.Join(lines, "\n")), nil
}

func formatTriple(a, b, c float64) string {
	return formatNumber(a) + ", " + formatNumber(b) + ", " + formatNumber(c)
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
