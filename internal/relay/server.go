package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"latksync/internal/archive"
	"latksync/internal/stroke"
)

type Options struct {
	Addr             string
	JWTSecret        string // empty disables authentication
	PingInterval     time.Duration
	PingTimeout      time.Duration
	HandshakeTimeout time.Duration
	MessageRate      rate.Limit // per client
	MessageBurst     int
	Logger           *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Addr:             ":8080",
		PingInterval:     25 * time.Second,
		PingTimeout:      20 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MessageRate:      10,
		MessageBurst:     20,
		Logger:           slog.Default(),
	}
}

// Server is the stroke relay: a Socket.IO endpoint plus a small read API over
// the archive. A nil store relays strokes without keeping them.
type Server struct {
	opts       Options
	hub        *Hub
	store      archive.Store
	auth       *Authenticator
	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(store archive.Store, opts Options) *Server {
	d := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = d.PingInterval
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = d.PingTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = d.HandshakeTimeout
	}
	if opts.MessageRate <= 0 {
		opts.MessageRate = d.MessageRate
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = d.MessageBurst
	}
	if opts.Logger == nil {
		opts.Logger = d.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		hub:    NewHub(store, opts.Logger),
		store:  store,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.JWTSecret != "" {
		s.auth = NewAuthenticator(opts.JWTSecret)
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{Addr: opts.Addr, Handler: s.engine}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", s.health)

	rooms := r.Group("/rooms", s.auth.Middleware())
	rooms.GET("/:room/frames", s.listFrames)
	rooms.GET("/:room/frames/:index", s.getFrame)

	r.GET("/socket.io/*path", WSHandler(s.ctx, s.hub, s.auth, s.opts))
	return r
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("relay_listening", "addr", s.opts.Addr, "auth", s.auth != nil)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	rooms := s.hub.Rooms()
	clients := 0
	for _, n := range rooms {
		clients += n
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(rooms), "clients": clients})
}

func (s *Server) listFrames(c *gin.Context) {
	room := c.Param("room")
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"room": room, "frames": []int{}})
		return
	}
	indices, err := s.store.Indices(c.Request.Context(), room)
	if err != nil {
		s.logger.Error("list_frames_failed", "room", room, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list frames"})
		return
	}
	if indices == nil {
		indices = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "frames": indices})
}

// getFrame answers with the frame in the newFrameFromServer array format.
func (s *Server) getFrame(c *gin.Context) {
	room := c.Param("room")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame index must be an integer"})
		return
	}
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		return
	}
	strokes, err := s.store.Frame(c.Request.Context(), room, index)
	if err != nil {
		s.logger.Error("get_frame_failed", "room", room, "frame", index, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read frame"})
		return
	}
	if len(strokes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		return
	}
	batch, err := stroke.EncodeBatch(strokes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode frame"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", batch)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
