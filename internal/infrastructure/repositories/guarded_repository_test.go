package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/core/domain"
	"studyhub/pkg/circuitbreaker"
)

type stubRepository struct {
	calls int
	err   error
	stall bool
}

func (s *stubRepository) do(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.calls++
	if s.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Session{ID: id, IsStarted: true}, nil
}

func (s *stubRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.do(ctx, id)
}

func (s *stubRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, _ time.Time) (*domain.Session, error) {
	return s.do(ctx, id)
}

func (s *stubRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, _ time.Time) (*domain.Session, error) {
	return s.do(ctx, id)
}

func (s *stubRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if _, err := s.do(ctx, ""); err != nil {
		return nil, err
	}
	return message, nil
}

func testGuard(timeout time.Duration) storeGuard {
	return storeGuard{
		timeout: timeout,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    2,
			SuccessThreshold:    1,
			Timeout:             time.Hour,
			MaxRequestsHalfOpen: 1,
			IsFailure:           isBackendFailure,
		}),
	}
}

func TestGuardedRepository_Timeout(t *testing.T) {
	stub := &stubRepository{stall: true}
	repo := newGuardedRepository(stub, testGuard(20*time.Millisecond))

	start := time.Now()
	_, err := repo.UpdateSessionStart(context.Background(), "s1", time.Now())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuardedRepository_OpensOnBackendFailures(t *testing.T) {
	stub := &stubRepository{err: errors.New("connection refused")}
	repo := newGuardedRepository(stub, testGuard(time.Second))
	ctx := context.Background()

	_, _ = repo.UpdateSessionEnd(ctx, "s1", time.Now())
	_, _ = repo.UpdateSessionEnd(ctx, "s1", time.Now())
	_, err := repo.UpdateSessionEnd(ctx, "s1", time.Now())

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, stub.calls)
}

func TestGuardedRepository_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubRepository{err: domain.ErrSessionNotFound}
	repo := newGuardedRepository(stub, testGuard(time.Second))

	for i := 0; i < 5; i++ {
		_, err := repo.GetByID(context.Background(), "missing")
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	}
	assert.Equal(t, 5, stub.calls)
}

func TestGuardedRepository_PassesThroughResult(t *testing.T) {
	repo := newGuardedRepository(&stubRepository{}, testGuard(0))

	session, err := repo.UpdateSessionStart(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), session.ID)
}

func TestGuardedMessageRepository_RejectedDoesNotTrip(t *testing.T) {
	stub := &stubRepository{err: domain.ErrMessageRejected}
	repo := newGuardedMessageRepository(stub, testGuard(time.Second))

	for i := 0; i < 5; i++ {
		_, err := repo.Create(context.Background(), &domain.Message{ID: "m1", GroupID: "g1"})
		require.ErrorIs(t, err, domain.ErrMessageRejected)
	}
	assert.Equal(t, 5, stub.calls)
}

func TestGuardedRepositories_ShareBreaker(t *testing.T) {
	guard := testGuard(time.Second)
	sessions := newGuardedRepository(&stubRepository{err: errors.New("connection refused")}, guard)
	messageStub := &stubRepository{}
	messages := newGuardedMessageRepository(messageStub, guard)
	ctx := context.Background()

	_, _ = sessions.UpdateSessionStart(ctx, "s1", time.Now())
	_, _ = sessions.UpdateSessionStart(ctx, "s1", time.Now())

	_, err := messages.Create(ctx, &domain.Message{ID: "m1", GroupID: "g1"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 0, messageStub.calls)
}
