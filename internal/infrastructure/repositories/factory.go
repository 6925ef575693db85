package repositories

import (
	"context"
	"database/sql"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/internal/infrastructure/repositories/memory"
	pgrepo "studyhub/internal/infrastructure/repositories/postgres"
	redisrepo "studyhub/internal/infrastructure/repositories/redis"
	"studyhub/pkg/circuitbreaker"
	"studyhub/pkg/config"
	"studyhub/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	driver         string
	messageHistory int
	redisClient    *redis.Client
	db             *sql.DB
	guard          storeGuard
	logger         *zap.SugaredLogger
}

// NewRepositoryFactory connects to the configured store, retrying with
// backoff. If the store stays unreachable the factory falls back to memory.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		driver:         config.StorageMemory,
		messageHistory: cfg.Storage.MessageHistory,
		logger:         logger,
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Storage.ConnectRetries
	retryCfg.InitialDelay = 500 * time.Millisecond
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnw("storage connection failed, retrying",
			"driver", cfg.Storage.Driver,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	switch cfg.Storage.Driver {
	case config.StorageRedis:
		err := retry.Retry(ctx, retryCfg, func(ctx context.Context) error {
			client, err := redisrepo.NewRedisClient(ctx,
				cfg.Redis.Address,
				cfg.Redis.Password,
				cfg.Redis.DB,
				cfg.Redis.PoolSize,
				logger,
			)
			if err != nil {
				return err
			}
			factory.redisClient = client
			return nil
		})
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories", "error", err)
		} else {
			factory.driver = config.StorageRedis
		}

	case config.StoragePostgres:
		err := retry.Retry(ctx, retryCfg, func(ctx context.Context) error {
			db, err := pgrepo.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, logger)
			if err != nil {
				return err
			}
			factory.db = db
			return nil
		})
		if err != nil {
			logger.Warnw("failed to connect to PostgreSQL, falling back to memory repositories", "error", err)
		} else {
			factory.driver = config.StoragePostgres
		}
	}

	factory.guard = factory.newGuard(cfg.Storage.RequestTimeout)
	logger.Infow("storage selected", "driver", factory.driver)
	return factory
}

// Driver reports the store actually in use after fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

// RedisClient returns the shared client, or nil when Redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// CreateSessionRepository creates the session lifecycle store
func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	switch {
	case f.redisClient != nil:
		return newGuardedRepository(redisrepo.NewRedisSessionRepository(f.redisClient), f.guard)
	case f.db != nil:
		return newGuardedRepository(pgrepo.NewPostgresSessionRepository(f.db), f.guard)
	default:
		return memory.NewSessionRepository()
	}
}

// CreateMessageRepository creates the chat message store
func (f *RepositoryFactory) CreateMessageRepository() ports.MessageRepository {
	switch {
	case f.redisClient != nil:
		return newGuardedMessageRepository(redisrepo.NewRedisMessageRepository(f.redisClient, f.messageHistory), f.guard)
	case f.db != nil:
		return newGuardedMessageRepository(pgrepo.NewPostgresMessageRepository(f.db), f.guard)
	default:
		return memory.NewMessageRepository(f.messageHistory)
	}
}

// newGuard builds the timeout and breaker shared by every repository on
// the selected backend.
func (f *RepositoryFactory) newGuard(timeout time.Duration) storeGuard {
	cfg := circuitbreaker.DefaultConfig()
	cfg.IsFailure = isBackendFailure

	breaker := circuitbreaker.New(cfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		f.logger.Warnw("storage circuit breaker changed state",
			"driver", f.driver,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return storeGuard{timeout: timeout, breaker: breaker}
}

// CreateCallRegistry creates the presence registry for call rooms
func (f *RepositoryFactory) CreateCallRegistry() *memory.PresenceRegistry {
	return memory.NewPresenceRegistry(domain.RoomKindCall)
}

// CreateSessionRegistry creates the presence registry for session rooms
func (f *RepositoryFactory) CreateSessionRegistry() *memory.PresenceRegistry {
	return memory.NewPresenceRegistry(domain.RoomKindSession)
}

// Close releases storage connections
func (f *RepositoryFactory) Close() error {
	if f.db != nil {
		if err := f.db.Close(); err != nil {
			return err
		}
	}
	return redisrepo.CloseRedisClient(f.redisClient)
}

// HealthCheck pings the backing store
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	switch {
	case f.redisClient != nil:
		return f.redisClient.Ping(ctx).Err()
	case f.db != nil:
		return f.db.PingContext(ctx)
	default:
		return nil
	}
}
