package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
)

type MessageRepo struct {
	DB DBTX
}

const messageColumns = `id, room_id, sender_id, sender, body, created_at, updated_at`

const createMessage = `-- name: CreateMessage
INSERT INTO messages (id, room_id, sender_id, sender, body)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + messageColumns

func (r *MessageRepo) CreateMessage(ctx context.Context, roomID uuid.UUID, sender models.User, body string) (models.Message, error) {
	rows, _ := r.DB.Query(ctx, createMessage, uuid.New(), roomID, sender.ID, sender.Username, body)
	msg, err := pgx.CollectOneRow(rows, rowToMessage)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				return msg, apperrors.ErrRoomNotFound
			case pgerrcode.CheckViolation:
				return msg, apperrors.ErrMessageEmpty
			}
		}
		return msg, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

const getMessage = `-- name: GetMessage
SELECT ` + messageColumns + ` FROM messages
WHERE id = $1
`

func (r *MessageRepo) GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	rows, _ := r.DB.Query(ctx, getMessage, messageID)
	return collectMessage(rows)
}

// Keyset pagination on (created_at, id): messages with equal created_at are neither skipped nor repeated
const listMessages = `-- name: ListMessages
SELECT ` + messageColumns + ` FROM messages
WHERE room_id = $1
  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2::timestamptz, $3::uuid))
ORDER BY created_at DESC, id DESC
LIMIT $4
`

func (r *MessageRepo) ListMessages(ctx context.Context, opts repository.ListMessagesOpts) ([]models.Message, error) {
	var (
		beforeAt *time.Time
		beforeID *uuid.UUID
	)
	if opts.Before != nil {
		beforeAt, beforeID = &opts.Before.CreatedAt, &opts.Before.ID
	}

	rows, _ := r.DB.Query(ctx, listMessages, opts.RoomID, beforeAt, beforeID, limitOrNull(opts.Limit))
	messages, err := pgx.CollectRows(rows, rowToMessage)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return messages, nil
}

const updateMessageBody = `-- name: UpdateMessageBody
UPDATE messages
SET body = $2, updated_at = clock_timestamp()
WHERE id = $1
RETURNING ` + messageColumns

func (r *MessageRepo) UpdateBody(ctx context.Context, messageID uuid.UUID, body string) (models.Message, error) {
	rows, _ := r.DB.Query(ctx, updateMessageBody, messageID, body)
	msg, err := collectMessage(rows)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return msg, apperrors.ErrMessageEmpty
	}

	return msg, err
}

const deleteMessage = `-- name: DeleteMessage
DELETE FROM messages
WHERE id = $1
`

func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteMessage, messageID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrMessageNotFound
	default:
		return nil
	}
}

func collectMessage(rows pgx.Rows) (models.Message, error) {
	msg, err := pgx.CollectOneRow(rows, rowToMessage)

	switch {
	case err == nil:
		return msg, nil
	case errors.Is(err, pgx.ErrNoRows):
		return msg, apperrors.ErrMessageNotFound
	default:
		return msg, fmt.Errorf("db error: %w", err)
	}
}

func rowToMessage(row pgx.CollectableRow) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Sender, &m.Body, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
