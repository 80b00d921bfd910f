package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/notifier"
	"github.com/01cheese/OnlineCompiler/task"
)

// Defaults for Config fields left zero.
const (
	DefaultAddr          = ":8000"
	DefaultWSWaitTimeout = 2 * time.Minute
	DefaultMaxBodyBytes  = 1 << 20
)

// Enqueuer accepts submitted tasks. queue.Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, t task.Task) error
}

// ResultReader loads stored results. jobstore.Store implements it.
type ResultReader interface {
	Get(ctx context.Context, taskID string) (task.Result, bool, error)
}

// Subscriber opens result subscriptions. notifier.Notifier implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, taskID string) (notifier.Subscription, error)
}

// Config holds the gateway settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// WSWaitTimeout bounds how long a WebSocket waits for its result.
	WSWaitTimeout time.Duration
	MaxBodyBytes  int64
}

// Server serves the HTTP API.
type Server struct {
	logger     *zap.Logger
	cfg        Config
	queue      Enqueuer
	store      ResultReader
	subscriber Subscriber
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	now        func() time.Time
	newID      func() string
}

// New creates a Server and registers its routes.
func New(logger *zap.Logger, cfg Config, q Enqueuer, store ResultReader, subscriber Subscriber) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.WSWaitTimeout <= 0 {
		cfg.WSWaitTimeout = DefaultWSWaitTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		logger:     logger,
		cfg:        cfg,
		queue:      q,
		store:      store,
		subscriber: subscriber,
		now:        time.Now,
		newID:      newTaskID,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin, cfg.AllowedOrigins)
		},
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware(cfg.AllowedOrigins))
	engine.GET("/", s.handleRoot)
	engine.POST("/execute", s.handleExecute)
	engine.GET("/result/:id", s.handleResult)
	engine.GET("/ws/:id", s.handleWebSocket)
	s.engine = engine

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.logger.Info("starting HTTP gateway", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP gateway stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
