package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/internal/core/services"
	httphandlers "studyhub/internal/handlers/http"
	"studyhub/internal/infrastructure/distributed"
	"studyhub/internal/infrastructure/middleware"
	"studyhub/internal/infrastructure/monitoring"
	"studyhub/internal/infrastructure/repositories"
	signalinfra "studyhub/internal/infrastructure/signal"
	"studyhub/pkg/config"
	"studyhub/pkg/logger"
	"studyhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// loadConfig uses the first config file that exists. With none, defaults
// and environment overrides apply.
func loadConfig() (*config.Config, string, error) {
	configPaths := []string{
		os.Getenv("STUDYHUB_CONFIG"),
		"configs/config.yaml",
		"config.yaml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	cfg, err := config.Load("")
	return cfg, "", err
}

func main() {
	startTime := time.Now()

	cfg, configPath, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "studyhub: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if configPath == "" {
		log.Warn("no config file found, using defaults")
	} else {
		log.Infow("loaded config", "path", configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	var tp *tracing.TracerProvider
	if cfg.Tracing.Enabled {
		traceCfg := tracing.DefaultConfig()
		traceCfg.Enabled = true
		traceCfg.JaegerURL = cfg.Tracing.JaegerURL
		traceCfg.Environment = cfg.Tracing.Environment
		traceCfg.SampleRate = cfg.Tracing.SampleRate

		tp, err = tracing.Init(traceCfg)
		if err != nil {
			log.Warnw("tracing disabled", "error", err)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	// Storage
	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, log)
	defer repoFactory.Close()

	sessionRepo := repoFactory.CreateSessionRepository()
	messageRepo := repoFactory.CreateMessageRepository()
	callRegistry := repoFactory.CreateCallRegistry()
	sessionRegistry := repoFactory.CreateSessionRegistry()
	monitoring.RegisterRoomGauge(registry, domain.RoomKindCall, callRegistry.RoomCount)
	monitoring.RegisterRoomGauge(registry, domain.RoomKindSession, sessionRegistry.RoomCount)

	hub := signalinfra.NewHub(collector, log)

	// Session events go to other instances only when they share Redis.
	var publisher ports.SessionEventPublisher
	var eventBus *distributed.EventBus
	if client := repoFactory.RedisClient(); client != nil {
		eventBus = distributed.NewEventBus(client, instanceID(), log)
		publisher = eventBus
		go func() {
			err := eventBus.Subscribe(ctx, distributed.LocalReplay(hub, sessionRegistry))
			if err != nil && ctx.Err() == nil {
				log.Errorw("session event subscription stopped", "error", err)
			}
		}()
	}

	// Services
	callService := services.NewCallService(callRegistry, hub, collector, log)
	sessionService := services.NewSessionService(sessionRegistry, sessionRepo, hub, publisher, collector, log)
	chatService := services.NewChatService(messageRepo, hub, collector, log)
	connectionService := services.NewConnectionService(callRegistry, sessionRegistry, hub, collector, log)

	dispatcher := signalinfra.NewDispatcher(callService, sessionService, chatService, hub, collector, log)
	wsServer := signalinfra.NewWebSocketServer(signalinfra.ConfigFromApp(cfg), hub, dispatcher, connectionService, collector, log)

	// Health
	var draining atomic.Bool
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddStorageCheck(repoFactory.Driver(), repoFactory.HealthCheck, 30*time.Second, 2*time.Second)
	healthChecker.AddDrainingCheck(draining.Load)
	healthChecker.StartBackgroundChecks(ctx)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	// With auth disabled a configured secret still verifies tokens that
	// clients choose to send; connections without one identify themselves.
	var authMiddleware gin.HandlerFunc
	switch {
	case cfg.Auth.Enabled:
		authMiddleware = middleware.AuthMiddleware(services.NewAuthService(cfg.Auth.JWTSecret))
	case cfg.Auth.JWTSecret != "":
		authMiddleware = middleware.OptionalAuthMiddleware(services.NewAuthService(cfg.Auth.JWTSecret))
		log.Warn("authentication optional, unauthenticated clients identify themselves")
	default:
		authMiddleware = func(c *gin.Context) { c.Next() }
		log.Warn("authentication disabled, clients identify themselves")
	}

	router.GET("/ws", authMiddleware, gin.WrapF(wsServer.HandleWebSocket))

	api := router.Group("/", authMiddleware)
	httphandlers.NewPresenceHandler(callService, sessionService, sessionRepo).SetupRoutes(api)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": wsServer.ConnectionCount(),
			"storage":     repoFactory.Driver(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		log.Infow("prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting studyhub signal server", "address", cfg.Server.Address, "storage", repoFactory.Driver())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	draining.Store(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by http.Server.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("websocket connections did not drain", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if eventBus != nil {
		_ = eventBus.Close()
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("failed to flush traces", "error", err)
		}
	}

	log.Info("studyhub signal server stopped")
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "studyhub"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
