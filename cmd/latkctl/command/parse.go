package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"latksync/internal/stroke"
)

var errNoPoints = errors.New("no points given")

// parsePoints reads "x,y,z;x,y,z;...".
func parsePoints(s string) ([]stroke.Point, error) {
	var points []stroke.Point
	for i, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parseTriple(part)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points = append(points, stroke.Point{X: v[0], Y: v[1], Z: v[2]})
	}
	if len(points) == 0 {
		return nil, errNoPoints
	}
	return points, nil
}

// parseColor reads "r,g,b".
func parseColor(s string) (stroke.Color, error) {
	v, err := parseTriple(s)
	if err != nil {
		return stroke.Color{}, fmt.Errorf("color: %w", err)
	}
	return stroke.Color{R: v[0], G: v[1], B: v[2]}, nil
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return out, fmt.Errorf("want 3 comma-separated numbers, got %q", s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", f)
		}
		out[i] = v
	}
	return out, nil
}
