package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"latksync/internal/socketio"
	"latksync/internal/stroke"
)

// Event names shared with the drawing server.
const (
	EventStrokeToServer = "clientStrokeToServer"
	EventNewFrame       = "newFrameFromServer"
)

// ErrNoStroke is returned when there is no finished stroke to send.
var ErrNoStroke = errors.New("no current stroke")

// Transport is the part of a socket session the bridge uses.
// *socketio.Client satisfies it.
type Transport interface {
	On(event string, h socketio.EventHandler)
	OnConnect(h func())
	OnReconnect(h func())
	OnError(h func(*socketio.Error))
	Emit(event string, args ...any) error
	Close() error
}

// FrameSource supplies the local drawing context for outbound strokes.
type FrameSource interface {
	CurrentFrame() int
	MainColor() stroke.Color
	LastStroke() (stroke.Stroke, bool)
}

type Options struct {
	Scaler float64             // multiplies every inbound coordinate
	Curve  stroke.CurveOptions // passed to the sink with every stroke
	Debug  bool                // log every sent and received message
	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultOptions returns a scale of 1 and debug logging on.
func DefaultOptions() Options {
	return Options{Scaler: 1, Debug: true, Logger: slog.Default(), Now: time.Now}
}

// Bridge mirrors locally drawn strokes to the server and forwards server frames
// to a local sink.
type Bridge struct {
	transport Transport
	frames    FrameSource
	sink      stroke.Sink
	opts      Options
	logger    *slog.Logger

	state     atomic.Pointer[State]
	closeOnce sync.Once
	closeErr  error
}

// New wires a bridge to an unconnected transport. Handlers are registered here,
// so call it before the transport connects.
func New(t Transport, frames FrameSource, sink stroke.Sink, opts Options) *Bridge {
	if opts.Scaler == 0 {
		opts.Scaler = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &Bridge{
		transport: t,
		frames:    frames,
		sink:      sink,
		opts:      opts,
		logger:    opts.Logger.With("component", "bridge"),
	}
	b.state.Store(&State{ChangedAt: opts.Now()})

	t.OnConnect(b.handleConnected)
	t.OnReconnect(b.handleConnected)
	t.OnError(b.handleError)
	t.On(EventNewFrame, b.handleNewFrameEvent)
	return b
}

// Open creates a socket session for addr, wires a bridge to it and connects.
func Open(ctx context.Context, addr string, frames FrameSource, sink stroke.Sink, opts Options, sockOpts socketio.Options) (*Bridge, error) {
	client := socketio.NewClient(addr, sockOpts)
	b := New(client, frames, sink, opts)
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return b, nil
}

// Status returns the current connection state.
func (b *Bridge) Status() State {
	return *b.state.Load()
}

// Connected reports whether the last transport event was a (re)connect.
func (b *Bridge) Connected() bool {
	return b.state.Load().Connected
}

// SendStroke encodes points as a stroke on the current frame and emits it.
func (b *Bridge) SendStroke(points []stroke.Point) error {
	if len(points) == 0 {
		return stroke.ErrEmptyStroke
	}
	s := stroke.Stroke{
		Index:  b.frames.CurrentFrame(),
		Color:  b.frames.MainColor(),
		Points: points,
	}
	doc, err := stroke.Encode(s, b.opts.Now())
	if err != nil {
		return err
	}
	if err := b.transport.Emit(EventStrokeToServer, string(doc)); err != nil {
		return fmt.Errorf("emit %s: %w", EventStrokeToServer, err)
	}
	if b.opts.Debug {
		b.logger.Info("stroke_sent", "index", s.Index, "points", len(points))
	}
	return nil
}

// SendLastStroke sends the most recently finished stroke of the frame source.
func (b *Bridge) SendLastStroke() error {
	s, ok := b.frames.LastStroke()
	if !ok {
		return ErrNoStroke
	}
	return b.SendStroke(s.Points)
}

// HandleNewFrame decodes one newFrameFromServer payload and forwards every
// stroke to the sink. It is what the transport callback runs, exported for
// hosts that receive payloads through another channel.
func (b *Bridge) HandleNewFrame(payload []byte) (stroke.Batch, error) {
	batch, err := stroke.DecodeBatch(payload, b.opts.Scaler)
	if err != nil {
		b.logger.Warn("frame_decode_failed", "error", err)
		return batch, err
	}

	if b.opts.Debug {
		b.logger.Info("frame_received", "index", batch.Index(), "strokes", len(batch.Strokes))
	}
	if !batch.Consistent() {
		b.logger.Warn("frame_index_mismatch", "first_index", batch.Index(), "strokes", len(batch.Strokes))
	}
	for _, r := range batch.Rejected {
		b.logger.Warn("frame_element_dropped", "stroke", r.Stroke, "point", r.Point, "error", r.Err)
	}

	stroke.Deliver(batch, b.sink, b.opts.Curve)
	return batch, nil
}

// Close shuts the transport down. Only the first call has an effect.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.transport.Close()
		b.state.Store(&State{ChangedAt: b.opts.Now()})
		if b.opts.Debug {
			b.logger.Info("bridge_closed")
		}
	})
	return b.closeErr
}

func (b *Bridge) handleConnected() {
	b.state.Store(connectedState(b.opts.Now()))
	if b.opts.Debug {
		b.logger.Info("bridge_connected")
	}
}

func (b *Bridge) handleError(e *socketio.Error) {
	b.logger.Error("bridge_transport_error",
		"kind", e.Kind.String(),
		"type", e.Kind.Describe(),
		"error", e.Err,
	)
	b.state.Store(failedState(e.Kind, b.opts.Now()))
}

func (b *Bridge) handleNewFrameEvent(args []json.RawMessage) {
	if len(args) == 0 {
		b.logger.Warn("frame_without_payload")
		return
	}
	b.HandleNewFrame(args[0])
}
