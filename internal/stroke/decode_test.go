package stroke

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	strokes []Stroke
	opts    []CurveOptions
}

func (r *recordingSink) MakeCurve(s Stroke, opts CurveOptions) {
	r.strokes = append(r.strokes, s)
	r.opts = append(r.opts, opts)
}

func TestDecodeBatch_Scaling(t *testing.T) {
	batch, err := DecodeBatch([]byte(`[{"index":0,"points":[{"co":[1,2,3]}]}]`), 2.0)
	require.NoError(t, err)

	require.Len(t, batch.Strokes, 1)
	assert.Equal(t, []Point{{X: 2, Y: 4, Z: 6}}, batch.Strokes[0].Points)
}

func TestDecodeBatch_EmptyPoints(t *testing.T) {
	batch, err := DecodeBatch([]byte(`[{"index":3,"color":[1,1,1],"points":[]}]`), 1.0)
	require.NoError(t, err)

	require.Len(t, batch.Strokes, 1)
	assert.Equal(t, 0, batch.Strokes[0].Len())
	assert.Empty(t, batch.Rejected)

	sink := &recordingSink{}
	assert.Equal(t, 1, Deliver(batch, sink, CurveOptions{}))
	require.Len(t, sink.strokes, 1)
	assert.Empty(t, sink.strokes[0].Points)
}

func TestDecodeBatch_MissingPointsDoesNotBlockSiblings(t *testing.T) {
	doc := `[
		{"index": 1, "color": [0, 0, 1], "points": [{"co": [1, 1, 1]}, {"co": [2, 2, 2]}]},
		{"index": 1, "color": [1, 0, 0]},
		{"index": 1, "points": [{"co": [3, 3, 3]}]}
	]`

	batch, err := DecodeBatch([]byte(doc), 1.0)
	require.NoError(t, err)

	require.Len(t, batch.Strokes, 2)
	assert.Len(t, batch.Strokes[0].Points, 2)
	assert.Equal(t, Color{B: 1}, batch.Strokes[0].Color)
	assert.Equal(t, []Point{{X: 3, Y: 3, Z: 3}}, batch.Strokes[1].Points)

	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, 1, batch.Rejected[0].Stroke)
	assert.Equal(t, -1, batch.Rejected[0].Point)
	assert.ErrorIs(t, batch.Rejected[0].Err, ErrMissingPoints)
}

func TestDecodeBatch_MalformedPointsAreSkipped(t *testing.T) {
	doc := `[{"index": 2, "points": [
		{"co": [1, 2, 3]},
		{"co": [1, 2]},
		{"xy": [0, 0, 0]},
		{"co": ["a", 0, 0]},
		{"co": [1, null, 3]},
		"not a point",
		{"co": [4, 5, 6, 7]}
	]}]`

	batch, err := DecodeBatch([]byte(doc), 1.0)
	require.NoError(t, err)

	require.Len(t, batch.Strokes, 1)
	assert.Equal(t, []Point{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}, batch.Strokes[0].Points)

	require.Len(t, batch.Rejected, 5)
	for i, r := range batch.Rejected {
		assert.Equal(t, 0, r.Stroke)
		assert.Equal(t, i+1, r.Point)
		assert.ErrorIs(t, r.Err, ErrMalformedPoint)
	}
}

func TestDecodeBatch_NonObjectElement(t *testing.T) {
	batch, err := DecodeBatch([]byte(`[42, {"points": [{"co": [0, 0, 1]}]}, null]`), 1.0)
	require.NoError(t, err)

	require.Len(t, batch.Strokes, 1)
	require.Len(t, batch.Rejected, 2)
	assert.ErrorIs(t, batch.Rejected[0].Err, ErrNotStroke)
	assert.ErrorIs(t, batch.Rejected[1].Err, ErrNotStroke)
}

func TestDecodeBatch_StringWrappedDocument(t *testing.T) {
	inner := `[{"index": 5, "points": [{"co": [1, 0, 0]}]}]`
	wrapped, err := json.Marshal(inner)
	require.NoError(t, err)

	batch, err := DecodeBatch(wrapped, 1.0)
	require.NoError(t, err)
	require.Len(t, batch.Strokes, 1)
	assert.Equal(t, 5, batch.Index())
}

func TestDecodeBatch_NotABatch(t *testing.T) {
	for _, doc := range []string{``, `{}`, `"plain text"`, `[1, 2`, `null`} {
		_, err := DecodeBatch([]byte(doc), 1.0)
		assert.ErrorIs(t, err, ErrNotBatch, "document %q", doc)
	}
}

func TestBatch_IndexAndConsistency(t *testing.T) {
	assert.Equal(t, -1, Batch{}.Index())
	assert.True(t, Batch{}.Consistent())

	same := Batch{Strokes: []Stroke{{Index: 2}, {Index: 2}}}
	assert.Equal(t, 2, same.Index())
	assert.True(t, same.Consistent())

	mixed := Batch{Strokes: []Stroke{{Index: 2}, {Index: 3}}}
	assert.Equal(t, 2, mixed.Index())
	assert.False(t, mixed.Consistent())
}

func TestDeliver_PassesOptionsInOrder(t *testing.T) {
	batch := Batch{Strokes: []Stroke{{Index: 1}, {Index: 2}, {Index: 3}}}
	opts := CurveOptions{KillStrokes: true, StrokeLife: 5}

	sink := &recordingSink{}
	n := Deliver(batch, sink, opts)

	assert.Equal(t, 3, n)
	for i, s := range sink.strokes {
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, opts, sink.opts[i])
	}
	assert.Zero(t, Deliver(batch, nil, opts))
}

func TestDecodeStroke_Errors(t *testing.T) {
	_, _, err := DecodeStroke([]byte(`[1,2,3]`), 1.0)
	assert.ErrorIs(t, err, ErrNotStroke)

	_, _, err = DecodeStroke([]byte(`{"index": 1, "points": null}`), 1.0)
	assert.ErrorIs(t, err, ErrMissingPoints)

	_, _, err = DecodeStroke([]byte(`{"points": {"co": [1,2,3]}}`), 1.0)
	assert.ErrorIs(t, err, ErrMissingPoints)
}

func TestDecodeStroke_NonFinitePointIsRejected(t *testing.T) {
	s := Stroke{
		Index: 2,
		Points: []Point{
			{X: 0, Y: 1, Z: 2},
			{X: math.NaN(), Y: 1, Z: 2},
			{X: 3, Y: math.Inf(-1), Z: 5},
			{X: 6, Y: 7, Z: 8},
		},
	}
	doc, err := Encode(s, fixedTime)
	require.NoError(t, err)

	got, rejected, err := DecodeStroke(doc, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Index)
	assert.Equal(t, []Point{{X: 0, Y: 1, Z: 2}, {X: 6, Y: 7, Z: 8}}, got.Points)

	require.Len(t, rejected, 2)
	assert.Equal(t, 1, rejected[0].Point)
	assert.Equal(t, 2, rejected[1].Point)
	assert.ErrorIs(t, rejected[0].Err, ErrMalformedPoint)
}

func TestDecodeBatch_NonFiniteTokens(t *testing.T) {
	doc := `[{"index": 1, "note": "NaN or Infinity \"NaN\"", "points": [{"co": [Infinity, 0, 0]}, {"co": [1, 2, 3]}]}]`

	batch, err := DecodeBatch([]byte(doc), 1.0)
	require.NoError(t, err)
	require.Len(t, batch.Strokes, 1)
	assert.Equal(t, []Point{{X: 1, Y: 2, Z: 3}}, batch.Strokes[0].Points)
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, 0, batch.Rejected[0].Point)
}

func TestNullNonFinite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"untouched", `{"co": [1, 2, 3]}`, `{"co": [1, 2, 3]}`},
		{"all tokens", `[NaN, Infinity, -Infinity]`, `[null, null, null]`},
		{"inside strings", `{"a": "NaN", "b": "x\"Infinity"}`, `{"a": "NaN", "b": "x\"Infinity"}`},
		{"escaped backslash", `["\\", NaN]`, `["\\", null]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(nullNonFinite([]byte(tt.in))))
		})
	}
}

func TestDecodeStroke_IndexOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"in range", `{"index": 12, "points": []}`, 12},
		{"negative in range", `{"index": -3, "points": []}`, -3},
		{"too large", `{"index": 1e300, "points": []}`, 0},
		{"too small", `{"index": -1e20, "points": []}`, 0},
		{"overflowing literal", `{"index": 1e400, "points": []}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, err := DecodeStroke([]byte(tt.doc), 1.0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Index)
		})
	}
}
