package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latksync/internal/stroke"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints("0,0,1; 0.5, -0.5 ,1;")
	require.NoError(t, err)
	assert.Equal(t, []stroke.Point{{X: 0, Y: 0, Z: 1}, {X: 0.5, Y: -0.5, Z: 1}}, points)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only separators", ";;"},
		{"two coordinates", "1,2"},
		{"not a number", "1,b,3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePoints(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("1, 0.5,0")
	require.NoError(t, err)
	assert.Equal(t, stroke.Color{R: 1, G: 0.5}, c)

	_, err = parseColor("red")
	assert.Error(t, err)
}
