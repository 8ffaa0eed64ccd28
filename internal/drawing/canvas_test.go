package drawing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latksync/internal/stroke"
)

var red = stroke.Color{R: 1}

func TestCanvas_LocalGesture(t *testing.T) {
	c := NewCanvas(red)
	require.NoError(t, c.SetCurrentFrame(3))

	assert.False(t, c.AddPoint(stroke.Point{X: 1}), "points before BeginStroke are ignored")

	c.BeginStroke()
	assert.True(t, c.Drawing())
	assert.True(t, c.AddPoint(stroke.Point{X: 1, Y: 2, Z: 3}))
	assert.True(t, c.AddPoint(stroke.Point{X: 4, Y: 5, Z: 6}))

	s, ok := c.EndStroke()
	require.True(t, ok)
	assert.False(t, c.Drawing())
	assert.Equal(t, 3, s.Index)
	assert.Equal(t, red, s.Color)
	assert.Equal(t, 2, s.Len())

	last, ok := c.LastStroke()
	require.True(t, ok)
	assert.Equal(t, s, last)

	entries, err := c.Strokes(0, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Remote)
	assert.NotEmpty(t, entries[0].ID)
}

func TestCanvas_EmptyGesture(t *testing.T) {
	c := NewCanvas(red)
	_, ok := c.LastStroke()
	assert.False(t, ok)

	c.BeginStroke()
	_, ok = c.EndStroke()
	assert.False(t, ok)

	frames, err := c.Frames(0)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestCanvas_MakeCurve(t *testing.T) {
	c := NewCanvas(red)
	in := stroke.Stroke{Index: 7, Points: []stroke.Point{{X: 1}}}
	c.MakeCurve(in, stroke.CurveOptions{})

	entries, err := c.Strokes(0, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Remote)
	assert.True(t, entries[0].Expires.IsZero())

	// the caller's slice is not retained
	in.Points[0].X = 99
	entries, _ = c.Strokes(0, 7)
	assert.Equal(t, 1.0, entries[0].Stroke.Points[0].X)

	_, ok := c.LastStroke()
	assert.False(t, ok, "inbound strokes are not local strokes")

	frames, err := c.Frames(0)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, frames)
}

func TestCanvas_StrokeExpiry(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCanvas(red)
	c.SetClock(func() time.Time { return start })

	opts := stroke.CurveOptions{KillStrokes: true, StrokeLife: 10 * time.Second}
	c.MakeCurve(stroke.Stroke{Index: 1, Points: []stroke.Point{{X: 1}}}, opts)
	c.MakeCurve(stroke.Stroke{Index: 1, Points: []stroke.Point{{X: 2}}}, stroke.CurveOptions{})

	assert.Equal(t, 0, c.Sweep(start.Add(9*time.Second)))
	assert.Equal(t, 1, c.Sweep(start.Add(10*time.Second)))

	entries, err := c.Strokes(0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2.0, entries[0].Stroke.Points[0].X)
}

func TestCanvas_SweepDropsEmptyFrames(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCanvas(red)
	c.SetClock(func() time.Time { return start })
	c.MakeCurve(stroke.Stroke{Index: 2}, stroke.CurveOptions{KillStrokes: true, StrokeLife: time.Second})

	assert.Equal(t, 1, c.Sweep(start.Add(time.Minute)))
	frames, err := c.Frames(0)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestCanvas_RunSweeper(t *testing.T) {
	c := NewCanvas(red)
	c.MakeCurve(stroke.Stroke{Index: 0}, stroke.CurveOptions{KillStrokes: true, StrokeLife: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		frames, _ := c.Frames(0)
		return len(frames) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCanvas_RunSweeperClampsInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, time.Nanosecond, -time.Second} {
		c := NewCanvas(red)
		c.MakeCurve(stroke.Stroke{Index: 2}, stroke.CurveOptions{KillStrokes: true, StrokeLife: time.Nanosecond})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			c.RunSweeper(ctx, interval)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			frames, _ := c.Frames(0)
			return len(frames) == 0
		}, time.Second, 5*time.Millisecond, "interval %v", interval)

		cancel()
		<-done
	}
}

func TestCanvas_Layers(t *testing.T) {
	c := NewCanvas(red)
	assert.Equal(t, 1, c.LayerCount())

	second := c.AddLayer("ink")
	assert.Equal(t, 1, second)
	require.NoError(t, c.SetCurrentLayer(second))
	require.NoError(t, c.SetCurrentFrame(5))
	assert.Equal(t, 5, c.CurrentFrame())

	require.NoError(t, c.SetCurrentLayer(0))
	assert.Equal(t, 0, c.CurrentFrame(), "frames are tracked per layer")

	assert.ErrorIs(t, c.SetCurrentLayer(4), ErrNoLayer)
	assert.Error(t, c.SetCurrentFrame(-1))
	_, err := c.Strokes(9, 0)
	assert.ErrorIs(t, err, ErrNoLayer)

	c.SetMainColor(stroke.Color{B: 1})
	assert.Equal(t, stroke.Color{B: 1}, c.MainColor())
}

func TestCanvas_ConcurrentInboundAndLocal(t *testing.T) {
	c := NewCanvas(red)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.MakeCurve(stroke.Stroke{Index: 0, Points: []stroke.Point{{X: float64(i)}}}, stroke.CurveOptions{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.BeginStroke()
			c.AddPoint(stroke.Point{Y: float64(i)})
			c.EndStroke()
		}
	}()
	wg.Wait()

	entries, err := c.Strokes(0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}
