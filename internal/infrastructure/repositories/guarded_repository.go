package repositories

import (
	"context"
	"errors"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/circuitbreaker"
)

// storeGuard bounds every call to a networked store with a timeout and
// stops calling it while the breaker is open. Repositories on the same
// backend share one guard.
type storeGuard struct {
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// isBackendFailure keeps caller mistakes and cancellations from tripping
// the breaker.
func isBackendFailure(err error) bool {
	return !errors.Is(err, domain.ErrSessionNotFound) &&
		!errors.Is(err, domain.ErrMessageRejected) &&
		!errors.Is(err, context.Canceled)
}

func guardedCall[T any](ctx context.Context, g storeGuard, fn func(ctx context.Context) (T, error)) (T, error) {
	return circuitbreaker.Call(ctx, g.breaker, func(ctx context.Context) (T, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

type guardedSessionRepository struct {
	inner ports.SessionRepository
	guard storeGuard
}

func newGuardedRepository(inner ports.SessionRepository, guard storeGuard) ports.SessionRepository {
	return &guardedSessionRepository{inner: inner, guard: guard}
}

func (r *guardedSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return guardedCall(ctx, r.guard, func(ctx context.Context) (*domain.Session, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *guardedSessionRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error) {
	return guardedCall(ctx, r.guard, func(ctx context.Context) (*domain.Session, error) {
		return r.inner.UpdateSessionStart(ctx, id, startedAt)
	})
}

func (r *guardedSessionRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	return guardedCall(ctx, r.guard, func(ctx context.Context) (*domain.Session, error) {
		return r.inner.UpdateSessionEnd(ctx, id, endedAt)
	})
}

type guardedMessageRepository struct {
	inner ports.MessageRepository
	guard storeGuard
}

func newGuardedMessageRepository(inner ports.MessageRepository, guard storeGuard) ports.MessageRepository {
	return &guardedMessageRepository{inner: inner, guard: guard}
}

func (r *guardedMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	return guardedCall(ctx, r.guard, func(ctx context.Context) (*domain.Message, error) {
		return r.inner.Create(ctx, message)
	})
}
