package signal

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/internal/core/services"
	"studyhub/pkg/config"
	apperrors "studyhub/pkg/errors"
	rlog "studyhub/pkg/logger"
	"studyhub/pkg/validation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the connection-level settings of the WebSocket server.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string

	// Zero values disable the corresponding limiter.
	MessagesPerSecond    float64
	MessageBurst         int
	ConnectionsPerMinute int
}

// ConfigFromApp maps the application config onto server settings.
func ConfigFromApp(cfg *config.Config) Config {
	c := Config{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		SendBuffer:     cfg.Signal.SendBuffer,
		MaxMessageSize: cfg.Signal.MaxMessageSize,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		c.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		c.MessageBurst = cfg.RateLimiting.WebSocket.Burst
		c.ConnectionsPerMinute = cfg.RateLimiting.WebSocket.ConnectionsPerMinute
	}
	return c
}

type WebSocketServer struct {
	cfg         Config
	upgrader    websocket.Upgrader
	hub         *Hub
	dispatcher  *Dispatcher
	connections ports.ConnectionService
	metrics     ports.TransportMetrics
	connLimiter *rate.Limiter

	baseCtx context.Context
	cancel  context.CancelFunc

	// drainMu orders wg.Add against the draining flag so no connection is
	// added once Shutdown has started waiting.
	drainMu  sync.Mutex
	draining atomic.Bool
	wg       sync.WaitGroup

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	cfg Config,
	hub *Hub,
	dispatcher *Dispatcher,
	connections ports.ConnectionService,
	metrics ports.TransportMetrics,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WebSocketServer{
		cfg:         cfg,
		hub:         hub,
		dispatcher:  dispatcher,
		connections: connections,
		metrics:     metrics,
		baseCtx:     ctx,
		cancel:      cancel,
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	if cfg.ConnectionsPerMinute > 0 {
		perSecond := rate.Limit(float64(cfg.ConnectionsPerMinute) / 60.0)
		s.connLimiter = rate.NewLimiter(perSecond, cfg.ConnectionsPerMinute)
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients
		return true
	}
	if err := validation.ValidateOrigin(origin, s.cfg.AllowedOrigins); err != nil {
		s.logger.Warnw("websocket origin rejected", "origin", origin, "error", err)
		return false
	}
	return true
}

// ConnectionCount reports live connections.
func (s *WebSocketServer) ConnectionCount() int {
	return s.hub.Count()
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. Claims placed on the request context by the auth middleware bind
// the connection to that user.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.connLimiter != nil && !s.connLimiter.Allow() {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	}

	c := newConnection(domain.ConnectionID(uuid.NewString()), ws, s.cfg.SendBuffer, limiter)
	if claims, ok := services.ClaimsFromContext(r.Context()); ok {
		c.authenticate(claims.UserID, claims.Name)
	}

	s.serve(c)
}

// track counts a new connection unless the server is draining.
func (s *WebSocketServer) track() bool {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if s.draining.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) serve(c *Connection) {
	ctx := rlog.WithConnectionID(s.baseCtx, string(c.ID()))
	log := rlog.FromContext(ctx, s.logger)

	s.hub.Register(c)
	if s.metrics != nil {
		s.metrics.ConnectionOpened()
	}
	log.Infow("client connected", "user_id", c.UserID(), "connections", s.hub.Count())

	defer s.disconnect(ctx, c)

	// upgraded while Shutdown was taking its snapshot
	if s.draining.Load() {
		c.closeWithReason(websocket.CloseGoingAway, "server shutting down", s.cfg.WriteTimeout)
		return
	}

	go c.writePump(s.cfg.PingInterval, s.cfg.WriteTimeout)
	_ = s.hub.SendTo(c.ID(), domain.EventConnected, domain.ConnectedEvent{SocketID: c.ID()})

	c.ws.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Infow("websocket read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if !c.allow() {
			_ = s.hub.SendTo(c.ID(), domain.EventError, domain.ErrorEvent{
				Code:    string(apperrors.ErrCodeRateLimit),
				Message: "rate limit exceeded",
			})
			continue
		}

		s.dispatcher.Dispatch(ctx, c, data)
	}
}

// disconnect runs presence cleanup exactly once per connection.
func (s *WebSocketServer) disconnect(ctx context.Context, c *Connection) {
	c.cleanupOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				rlog.FromContext(ctx, s.logger).Errorw("panic during disconnect cleanup", "panic", r)
			}
		}()

		s.connections.Disconnect(ctx, c.ID())
		s.hub.Unregister(c.ID())
		c.Close()

		if s.metrics != nil {
			s.metrics.ConnectionClosed(time.Since(c.openedAt))
		}
		rlog.FromContext(ctx, s.logger).Infow("client disconnected", "connections", s.hub.Count())
	})
}

// Shutdown rejects new upgrades, sends a going-away close frame to every
// client and waits for their cleanup to finish or ctx to expire.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.drainMu.Lock()
	s.draining.Store(true)
	s.drainMu.Unlock()

	for _, c := range s.hub.Connections() {
		c.closeWithReason(websocket.CloseGoingAway, "server shutting down", s.cfg.WriteTimeout)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
