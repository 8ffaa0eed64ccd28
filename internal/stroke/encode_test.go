package stroke

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func TestEncode_Layout(t *testing.T) {
	s := Stroke{
		Index:  4,
		Color:  Color{R: 1, G: 0.5, B: 0},
		Points: []Point{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
	}

	data, err := Encode(s, fixedTime)
	require.NoError(t, err)

	want := strings.Join([]string{
		"{",
		`"timestamp": "3/5/2024 2:07:09 PM",`,
		`"index": 4,`,
		`"color": [1, 0.5, 0],`,
		`"points": [`,
		`{"co": [1, 2, 3]},`,
		`{"co": [4, 5, 6]}`,
		"]",
		"}",
	}, "\n")
	assert.Equal(t, want, string(data))
}

func TestEncode_NoTrailingSeparator(t *testing.T) {
	s := Stroke{Points: []Point{{X: 1}, {X: 2}, {X: 3}}}

	data, err := Encode(s, fixedTime)
	require.NoError(t, err)

	text := string(data)
	start := strings.Index(text, `"points": [`) + len(`"points": [`)
	end := strings.LastIndex(text, "]")
	pointsBody := text[start:end]

	assert.Equal(t, 2, strings.Count(pointsBody, "},"), "separators between points")
	assert.False(t, strings.HasSuffix(strings.TrimSpace(pointsBody), ","), "trailing separator")
}

func TestEncode_SinglePoint(t *testing.T) {
	data, err := Encode(Stroke{Points: []Point{{X: 0.25, Y: -1, Z: 7}}}, fixedTime)
	require.NoError(t, err)

	assert.Contains(t, string(data), "{\"co\": [0.25, -1, 7]}\n]")
	assert.NotContains(t, string(data), "},")
}

func TestEncode_EmptyStroke(t *testing.T) {
	_, err := Encode(Stroke{}, fixedTime)
	assert.ErrorIs(t, err, ErrEmptyStroke)
}

func TestEncode_NonFiniteValuesPassThrough(t *testing.T) {
	s := Stroke{Points: []Point{{X: math.NaN(), Y: math.Inf(1), Z: math.Inf(-1)}}}

	data, err := Encode(s, fixedTime)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"co": [NaN, Infinity, -Infinity]}`)
}

func TestEncode_RoundTrip(t *testing.T) {
	cases := map[string][]Point{
		"one point":   {{X: 1.5, Y: -2.25, Z: 3}},
		"three":       {{X: 0, Y: 0, Z: 0}, {X: 0.1, Y: 0.2, Z: 0.3}, {X: -10, Y: 1e-7, Z: 123456.789}},
		"long stroke": makePath(64),
	}

	for name, points := range cases {
		t.Run(name, func(t *testing.T) {
			in := Stroke{Index: 9, Color: Color{R: 0.2, G: 0.4, B: 0.6}, Points: points}
			data, err := Encode(in, fixedTime)
			require.NoError(t, err)

			out, rejected, err := DecodeStroke(data, 1.0)
			require.NoError(t, err)
			assert.Empty(t, rejected)
			assert.Equal(t, in.Index, out.Index)
			assert.Equal(t, in.Color, out.Color)
			require.Len(t, out.Points, len(in.Points))
			for i := range in.Points {
				assert.InDelta(t, in.Points[i].X, out.Points[i].X, 1e-9)
				assert.InDelta(t, in.Points[i].Y, out.Points[i].Y, 1e-9)
				assert.InDelta(t, in.Points[i].Z, out.Points[i].Z, 1e-9)
			}
		})
	}
}

func makePath(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		f := float64(i)
		points[i] = Point{X: math.Cos(f / 10), Y: math.Sin(f / 10), Z: f / 100}
	}
	return points
}
