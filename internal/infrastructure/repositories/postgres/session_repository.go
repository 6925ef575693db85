package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/tracing"
)

// The "Session" table is owned by the CRUD layer; only the lifecycle
// columns are touched here.
const (
	getSessionQuery = `
		SELECT id, "isStarted", "startedAt", "endedAt"
		FROM "Session"
		WHERE id = $1
	`
	startSessionQuery = `
		UPDATE "Session"
		SET "isStarted" = true, "startedAt" = $2
		WHERE id = $1
		RETURNING id, "isStarted", "startedAt", "endedAt"
	`
	endSessionQuery = `
		UPDATE "Session"
		SET "endedAt" = $2
		WHERE id = $1
		RETURNING id, "isStarted", "startedAt", "endedAt"
	`
)

type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) ports.SessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return r.queryRow(ctx, "select", getSessionQuery, string(id))
}

func (r *PostgresSessionRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error) {
	return r.queryRow(ctx, "update", startSessionQuery, string(id), startedAt.UTC())
}

func (r *PostgresSessionRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	return r.queryRow(ctx, "update", endSessionQuery, string(id), endedAt.UTC())
}

func (r *PostgresSessionRepository) queryRow(ctx context.Context, op, query string, args ...interface{}) (*domain.Session, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "postgresql", op, "Session")
	defer span.End()

	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("session %s failed: %w", op, err)
	}
	return session, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		id        string
		session   domain.Session
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	if err := row.Scan(&id, &session.IsStarted, &startedAt, &endedAt); err != nil {
		return nil, err
	}

	session.ID = domain.SessionID(id)
	if startedAt.Valid {
		session.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}
