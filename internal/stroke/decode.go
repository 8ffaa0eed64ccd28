package stroke

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DecodeBatch parses a newFrameFromServer document into strokes.
//
// The document must be a JSON array of stroke objects, or a JSON string holding
// such an array. Decoding is best effort: a stroke without a usable points array
// is dropped, a point without three numeric coordinates is dropped, and both are
// recorded in Batch.Rejected. Bare NaN and Infinity coordinates, as written by
// Encode, reject only their point. Every coordinate is multiplied by scaler.
func DecodeBatch(data []byte, scaler float64) (Batch, error) {
	elems, err := splitArray(data)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Strokes: make([]Stroke, 0, len(elems))}
	for i, raw := range elems {
		s, rejected, err := decodeElement(raw, i, scaler)
		batch.Rejected = append(batch.Rejected, rejected...)
		if err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{Stroke: i, Point: -1, Err: err})
			continue
		}
		batch.Strokes = append(batch.Strokes, s)
	}
	return batch, nil
}

// DecodeStroke parses a single clientStrokeToServer document.
// Dropped points are returned as rejections; a missing points array is an error.
func DecodeStroke(data []byte, scaler float64) (Stroke, []Rejection, error) {
	return decodeElement(nullNonFinite(data), 0, scaler)
}

func splitArray(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotBatch, err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotBatch
	}
	data = nullNonFinite(data)

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotBatch, err)
	}
	return elems, nil
}

func decodeElement(raw json.RawMessage, pos int, scaler float64) (Stroke, []Rejection, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Stroke{}, nil, ErrNotStroke
	}

	rawPoints, ok := fields["points"]
	if !ok || isNull(rawPoints) {
		return Stroke{}, nil, ErrMissingPoints
	}
	var points []json.RawMessage
	if err := json.Unmarshal(rawPoints, &points); err != nil {
		return Stroke{}, nil, fmt.Errorf("%w: %v", ErrMissingPoints, err)
	}

	s := Stroke{Points: make([]Point, 0, len(points))}
	if v, ok := fields["index"]; ok {
		var idx float64
		if err := json.Unmarshal(v, &idx); err == nil && idx >= math.MinInt32 && idx <= math.MaxInt32 {
			s.Index = int(idx)
		}
	}
	if v, ok := fields["color"]; ok {
		if c, err := parseTriple(v); err == nil {
			s.Color = Color{R: c[0], G: c[1], B: c[2]}
		}
	}

	var rejected []Rejection
	for j, rp := range points {
		p, err := parsePoint(rp)
		if err != nil {
			rejected = append(rejected, Rejection{Stroke: pos, Point: j, Err: err})
			continue
		}
		s.Points = append(s.Points, p.Scale(scaler))
	}
	return s, rejected, nil
}

func parsePoint(raw json.RawMessage) (Point, error) {
	var obj struct {
		Co json.RawMessage `json:"co"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrMalformedPoint, err)
	}
	if obj.Co == nil || isNull(obj.Co) {
		return Point{}, fmt.Errorf("%w: missing co", ErrMalformedPoint)
	}
	c, err := parseTriple(obj.Co)
	if err != nil {
		return Point{}, err
	}
	return Point{X: c[0], Y: c[1], Z: c[2]}, nil
}

// parseTriple reads the first three numbers of a JSON array.
func parseTriple(raw json.RawMessage) ([3]float64, error) {
	var out [3]float64
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedPoint, err)
	}
	if len(items) < 3 {
		return out, fmt.Errorf("%w: want 3 coordinates, got %d", ErrMalformedPoint, len(items))
	}
	for i := 0; i < 3; i++ {
		if isNull(items[i]) {
			return out, fmt.Errorf("%w: null coordinate %d", ErrMalformedPoint, i)
		}
		if err := json.Unmarshal(items[i], &out[i]); err != nil {
			return out, fmt.Errorf("%w: coordinate %d: %v", ErrMalformedPoint, i, err)
		}
	}
	return out, nil
}

var nonFiniteTokens = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nullNonFinite replaces the bare NaN, Infinity and -Infinity tokens Encode
// writes with null, leaving string contents alone.
func nullNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); {
		ch := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			out = append(out, ch)
			i++
			continue
		}
		if ch == '"' {
			inString = true
			out = append(out, ch)
			i++
			continue
		}
		matched := false
		for _, tok := range nonFiniteTokens {
			if bytes.HasPrefix(data[i:], tok) {
				out = append(out, "null"...)
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, ch)
			i++
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
