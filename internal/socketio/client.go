package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	WriteWait               = 10 * time.Second // max time to write a frame
	DefaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultPingTimeout      = 20 * time.Second
)

// EventHandler receives the arguments of one inbound event, event name excluded.
type EventHandler func(args []json.RawMessage)

// AckHandler receives the arguments of an acknowledgement.
type AckHandler func(args []json.RawMessage)

// Options configure a Client. Unset fields other than Reconnect fall back to
// DefaultOptions; start from DefaultOptions to keep reconnection on.
type Options struct {
	Namespace            string
	Auth                 map[string]any // sent with CONNECT
	Header               http.Header
	EmitRate             rate.Limit
	EmitBurst            int
	Reconnect            bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 means unbounded
	HandshakeTimeout     time.Duration
	Dialer               *websocket.Dialer
	Logger               *slog.Logger
}

// DefaultOptions returns the options used by NewClient for unset fields.
func DefaultOptions() Options {
	return Options{
		Namespace:        DefaultNamespace,
		EmitRate:         rate.Limit(10),
		EmitBurst:        20,
		Reconnect:        true,
		ReconnectDelay:   2 * time.Second,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Dialer:           websocket.DefaultDialer,
		Logger:           slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Namespace == "" {
		o.Namespace = d.Namespace
	}
	if o.EmitRate == 0 {
		o.EmitRate = d.EmitRate
	}
	if o.EmitBurst == 0 {
		o.EmitBurst = d.EmitBurst
	}
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = d.ReconnectDelay
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.Dialer == nil {
		o.Dialer = d.Dialer
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Client is a Socket.IO v5 client session over the Engine.IO v4 websocket transport.
//
// Inbound events are dispatched on a single read goroutine in delivery order.
// Register handlers before calling Connect.
type Client struct {
	addr    string
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex // guards conn, sid, handshake and acks
	conn      *websocket.Conn
	sid       string
	handshake Handshake
	nextAck   int
	acks      map[int]AckHandler

	writeMu sync.Mutex // gorilla connections allow one concurrent writer

	hmu          sync.RWMutex
	handlers     map[string][]EventHandler
	onConnect    []func()
	onReconnect  []func()
	onDisconnect []func(reason string)
	onError      []func(*Error)

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient creates an unconnected session for addr (see BuildAddress).
func NewClient(addr string, opts Options) *Client {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		addr:     addr,
		opts:     opts,
		logger:   opts.Logger,
		limiter:  rate.NewLimiter(opts.EmitRate, opts.EmitBurst),
		ctx:      ctx,
		cancel:   cancel,
		acks:     make(map[int]AckHandler),
		handlers: make(map[string][]EventHandler),
	}
}

// Dial creates a session and connects it.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	c := NewClient(addr, opts)
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// On registers a handler for an inbound event.
func (c *Client) On(event string, h EventHandler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers a handler run after the first successful connect.
func (c *Client) OnConnect(h func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onConnect = append(c.onConnect, h)
}

// OnReconnect registers a handler run after every successful reconnect.
func (c *Client) OnReconnect(h func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onReconnect = append(c.onReconnect, h)
}

// OnDisconnect registers a handler run when an established session is lost.
func (c *Client) OnDisconnect(h func(reason string)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onDisconnect = append(c.onDisconnect, h)
}

// OnError registers a handler for classified session errors.
func (c *Client) OnError(h func(*Error)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onError = append(c.onError, h)
}

// Address returns the session address the client was created with.
func (c *Client) Address() string {
	return c.addr
}

// Connected reports the state set by the most recent transport event.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SID returns the Socket.IO session id of the current connection.
func (c *Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Handshake returns the Engine.IO handshake of the current connection.
func (c *Client) Handshake() Handshake {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshake
}

// Connect dials the server and joins the namespace. Connect does not retry;
// reconnection only applies to a session that was established once.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	conn, hs, sid, err := c.open(ctx)
	if err != nil {
		c.reportError(err)
		return err
	}
	c.install(conn, hs, sid)
	c.logger.Info("socket_connected", "addr", c.addr, "sid", sid)
	c.fire(c.connectHandlers())
	go c.readLoop(conn, hs)
	return nil
}

// Emit sends an event with the given arguments.
func (c *Client) Emit(event string, args ...any) error {
	return c.emit(event, nil, args...)
}

// EmitWithAck sends an event and calls ack when the server acknowledges it.
func (c *Client) EmitWithAck(event string, ack AckHandler, args ...any) error {
	return c.emit(event, ack, args...)
}

func (c *Client) emit(event string, ack AckHandler, args ...any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	p, err := EncodeEvent(c.opts.Namespace, event, args...)
	if err != nil {
		return err
	}
	if ack != nil {
		c.mu.Lock()
		p.ID = c.nextAck
		c.acks[c.nextAck] = ack
		c.nextAck++
		c.mu.Unlock()
	}
	return c.write(p.Frame())
}

// Close ends the session. It is safe to call more than once and from handlers.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		wasConnected := c.connected.Swap(false)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		if wasConnected {
			disconnect := Packet{Type: PacketDisconnect, Namespace: c.opts.Namespace, ID: -1}
			_ = c.write(disconnect.Frame())
		}
		err = conn.Close()
		c.logger.Info("socket_closed", "addr", c.addr)
	})
	return err
}

// open dials, reads the Engine.IO handshake and joins the namespace.
func (c *Client) open(ctx context.Context) (*websocket.Conn, Handshake, string, error) {
	var hs Handshake
	wsURL, err := WebsocketURL(c.addr)
	if err != nil {
		return nil, hs, "", &Error{Kind: ErrorInternal, Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()
	conn, _, err := c.opts.Dialer.DialContext(dialCtx, wsURL, c.opts.Header)
	if err != nil {
		return nil, hs, "", &Error{Kind: ErrorInternal, Err: fmt.Errorf("dial %s: %w", wsURL, err)}
	}

	fail := func(kind ErrorKind, err error) (*websocket.Conn, Handshake, string, error) {
		conn.Close()
		return nil, hs, "", &Error{Kind: kind, Err: err}
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fail(ErrorInternal, fmt.Errorf("read open packet: %w", err))
	}
	if len(msg) == 0 || msg[0] != EngineOpen {
		return fail(ErrorInternal, fmt.Errorf("expected open packet, got %q", msg))
	}
	if err := json.Unmarshal(msg[1:], &hs); err != nil {
		return fail(ErrorInternal, fmt.Errorf("decode handshake: %w", err))
	}
	if hs.MaxPayload > 0 {
		conn.SetReadLimit(int64(hs.MaxPayload))
	}

	connect, err := ConnectPacket(c.opts.Namespace, c.opts.Auth)
	if err != nil {
		return fail(ErrorInternal, err)
	}
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(connect.Frame())); err != nil {
		return fail(ErrorInternal, fmt.Errorf("write connect packet: %w", err))
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fail(ErrorInternal, fmt.Errorf("read connect reply: %w", err))
		}
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case EnginePing:
			conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, pong(msg)); err != nil {
				return fail(ErrorInternal, fmt.Errorf("write pong: %w", err))
			}
		case EngineClose:
			return fail(ErrorServer, errors.New("server closed the connection during handshake"))
		case EngineMessage:
			p, err := ParsePacket(string(msg[1:]))
			if err != nil || p.Namespace != c.opts.Namespace {
				continue
			}
			switch p.Type {
			case PacketConnect:
				var body struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal(p.Data, &body)
				return conn, hs, body.SID, nil
			case PacketConnectError:
				return fail(ErrorServer, fmt.Errorf("connect refused: %s", ConnectErrorMessage(p.Data)))
			}
		}
	}
}

func (c *Client) install(conn *websocket.Conn, hs Handshake, sid string) {
	c.mu.Lock()
	c.conn = conn
	c.handshake = hs
	c.sid = sid
	c.acks = make(map[int]AckHandler)
	c.mu.Unlock()
	c.connected.Store(true)
}

func (c *Client) readLoop(conn *websocket.Conn, hs Handshake) {
	interval := time.Duration(hs.PingInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := time.Duration(hs.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	for {
		conn.SetReadDeadline(time.Now().Add(interval + timeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.lost(conn, &Error{Kind: ErrorInternal, Err: fmt.Errorf("read: %w", err)}, true)
			return
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case EnginePing:
			if err := c.write(string(pong(msg))); err != nil {
				c.logger.Warn("socket_pong_failed", "error", err)
			}
		case EngineClose:
			c.lost(conn, &Error{Kind: ErrorServer, Err: errors.New("server closed the connection")}, true)
			return
		case EngineMessage:
			if !c.handlePacket(conn, string(msg[1:])) {
				return
			}
		case EnginePong, EngineNoop, EngineUpgrade:
		default:
			c.logger.Warn("socket_unknown_frame", "frame", string(msg))
		}
	}
}

// handlePacket processes one Socket.IO packet and reports whether the read loop
// should continue.
func (c *Client) handlePacket(conn *websocket.Conn, raw string) bool {
	p, err := ParsePacket(raw)
	if err != nil {
		c.reportError(&Error{Kind: ErrorInternal, Err: fmt.Errorf("parse packet: %w", err)})
		return true
	}
	if p.Namespace != c.opts.Namespace {
		return true
	}

	switch p.Type {
	case PacketEvent:
		name, args, err := p.Event()
		if err != nil {
			c.reportError(&Error{Kind: ErrorInternal, Err: err})
			return true
		}
		c.dispatch(name, args)
	case PacketAck:
		c.dispatchAck(p)
	case PacketDisconnect:
		// server-side disconnects are deliberate; no reconnect
		c.lost(conn, &Error{Kind: ErrorServer, Err: errors.New("server disconnected the namespace")}, false)
		conn.Close()
		return false
	case PacketConnectError:
		c.reportError(&Error{Kind: ErrorServer, Err: errors.New(ConnectErrorMessage(p.Data))})
	}
	return true
}

func (c *Client) dispatch(name string, args []json.RawMessage) {
	c.hmu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[name]...)
	c.hmu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("socket_event_unhandled", "event", name)
		return
	}
	for _, h := range handlers {
		c.safeCall(name, func() { h(args) })
	}
}

func (c *Client) dispatchAck(p Packet) {
	c.mu.Lock()
	ack, ok := c.acks[p.ID]
	delete(c.acks, p.ID)
	c.mu.Unlock()
	if !ok {
		return
	}

	var args []json.RawMessage
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &args); err != nil {
			c.reportError(&Error{Kind: ErrorInternal, Err: fmt.Errorf("decode ack payload: %w", err)})
			return
		}
	}
	c.safeCall("ack", func() { ack(args) })
}

// safeCall runs a user handler and reports a panic as a user error.
func (c *Client) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.reportError(&Error{Kind: ErrorUser, Err: fmt.Errorf("handler for %q panicked: %v", name, r)})
		}
	}()
	fn()
}

// lost handles the end of an established connection.
func (c *Client) lost(conn *websocket.Conn, sErr *Error, reconnect bool) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	current := c.conn == conn
	c.mu.Unlock()
	if !current {
		return
	}

	c.connected.Store(false)
	c.logger.Warn("socket_disconnected", "addr", c.addr, "kind", sErr.Kind.String(), "error", sErr.Err)
	c.reportError(sErr)

	c.hmu.RLock()
	handlers := slices.Clone(c.onDisconnect)
	c.hmu.RUnlock()
	for _, h := range handlers {
		c.safeCall("disconnect", func() { h(sErr.Err.Error()) })
	}

	if reconnect && c.opts.Reconnect {
		go c.reconnectLoop()
	}
}

// reconnectLoop retries the session, paced by a limiter, until it succeeds,
// the client is closed or the attempt budget runs out.
func (c *Client) reconnectLoop() {
	limiter := rate.NewLimiter(rate.Every(c.opts.ReconnectDelay), 1)
	limiter.Allow() // the first attempt waits one full delay

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(c.ctx); err != nil {
			return
		}
		conn, hs, sid, err := c.open(c.ctx)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("socket_reconnect_failed", "addr", c.addr, "attempt", attempt, "error", err)
			c.reportError(err)
			if c.opts.MaxReconnectAttempts > 0 && attempt >= c.opts.MaxReconnectAttempts {
				c.logger.Error("socket_reconnect_gave_up", "addr", c.addr, "attempts", attempt)
				return
			}
			continue
		}
		if c.closed.Load() {
			conn.Close()
			return
		}

		c.install(conn, hs, sid)
		c.logger.Info("socket_reconnected", "addr", c.addr, "sid", sid, "attempt", attempt)
		c.fire(c.reconnectHandlers())
		go c.readLoop(conn, hs)
		return
	}
}

func (c *Client) write(frame string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) reportError(err error) {
	var sErr *Error
	if !errors.As(err, &sErr) {
		sErr = &Error{Kind: ErrorInternal, Err: err}
	}

	c.hmu.RLock()
	handlers := slices.Clone(c.onError)
	c.hmu.RUnlock()
	for _, h := range handlers {
		// a panicking error handler must not recurse into reportError
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("socket_error_handler_panicked", "panic", r)
				}
			}()
			h(sErr)
		}()
	}
}

func (c *Client) connectHandlers() []func() {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return slices.Clone(c.onConnect)
}

func (c *Client) reconnectHandlers() []func() {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return slices.Clone(c.onReconnect)
}

func (c *Client) fire(handlers []func()) {
	for _, h := range handlers {
		c.safeCall("connect", h)
	}
}

// pong answers a ping frame, echoing any probe payload.
func pong(ping []byte) []byte {
	out := make([]byte, len(ping))
	copy(out, ping)
	out[0] = EnginePong
	return out
}
