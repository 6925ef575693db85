package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/tracing"

	"github.com/jackc/pgx/v5/pgconn"
)

// foreignKeyViolation is the SQLSTATE for an unknown group or user.
const foreignKeyViolation = "23503"

// The "Message" and "User" tables are owned by the CRUD layer. The author
// name is read back in the same statement.
const createMessageQuery = `
	WITH inserted AS (
		INSERT INTO "Message" (id, content, "groupId", "userId", "createdAt")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, content, "groupId", "userId", "createdAt"
	)
	SELECT i.id, i.content, i."groupId", i."userId", i."createdAt", u.name
	FROM inserted i
	LEFT JOIN "User" u ON u.id = i."userId"
`

type PostgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) ports.MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "postgresql", "insert", "Message")
	defer span.End()

	row := r.db.QueryRowContext(ctx, createMessageQuery,
		string(message.ID),
		message.Content,
		string(message.GroupID),
		string(message.UserID),
		message.CreatedAt.UTC(),
	)
	stored, err := scanMessage(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("%w: %s", domain.ErrMessageRejected, pgErr.ConstraintName)
		}
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("message insert failed: %w", err)
	}

	if stored.UserName == "" {
		stored.UserName = message.UserName
	}
	return stored, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		id, groupID, userID string
		message             domain.Message
		userName            sql.NullString
	)
	if err := row.Scan(&id, &message.Content, &groupID, &userID, &message.CreatedAt, &userName); err != nil {
		return nil, err
	}

	message.ID = domain.MessageID(id)
	message.GroupID = domain.RoomID(groupID)
	message.UserID = domain.UserID(userID)
	message.UserName = userName.String
	return &message, nil
}
