package stroke

import (
	"encoding/json"
	"fmt"
)

type wirePoint struct {
	Co [3]float64 `json:"co"`
}

type wireStroke struct {
	Index  int         `json:"index"`
	Color  [3]float64  `json:"color"`
	Points []wirePoint `json:"points"`
}

// EncodeBatch renders strokes as a newFrameFromServer array, the inverse of
// DecodeBatch at scale 1. Non-finite coordinates cannot be represented and
// make it fail.
func EncodeBatch(strokes []Stroke) ([]byte, error) {
	out := make([]wireStroke, len(strokes))
	for i, s := range strokes {
		w := wireStroke{
			Index:  s.Index,
			Color:  [3]float64{s.Color.R, s.Color.G, s.Color.B},
			Points: make([]wirePoint, len(s.Points)),
		}
		for j, p := range s.Points {
			w.Points[j] = wirePoint{Co: [3]float64{p.X, p.Y, p.Z}}
		}
		out[i] = w
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}
