package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, created_at, expires_at, used_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.UserID, token.CreatedAt, token.ExpiresAt, token.UsedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetRefreshToken
SELECT id, user_id, created_at, expires_at, used_at
FROM refresh_tokens
WHERE id = $1
`

// Get token
// It should return result even it expired or used already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenID)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

// Returns the row as it was before the update in 'prev_used_at'
// So concurrent callers can't both see the token unused
const getAndMarkUsed = `-- name: GetAndMarkUsed
UPDATE refresh_tokens AS t
SET used_at = COALESCE(t.used_at, $2)
FROM (SELECT id, used_at FROM refresh_tokens WHERE id = $1 FOR UPDATE) AS prev
WHERE t.id = prev.id
RETURNING t.id, t.user_id, t.created_at, t.expires_at, t.used_at, prev.used_at
`

// Mark token as used
// Should not rewrite already used tokens and return apperrors.ErrRefreshTokenIsUsed for them
func (r *RefreshTokenRepo) GetAndMarkUsed(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error) {
	var (
		token      models.RefreshToken
		prevUsedAt *time.Time
	)

	err := r.DB.QueryRow(ctx, getAndMarkUsed, tokenID, time.Now()).Scan(
		&token.ID, &token.UserID, &token.CreatedAt, &token.ExpiresAt, &token.UsedAt, &prevUsedAt,
	)

	switch {
	case err == nil && prevUsedAt == nil:
		return token, nil
	case err == nil:
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenIsUsed)
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteStaleTokens = `-- name: DeleteStaleRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1 OR used_at < $2
`

func (r *RefreshTokenRepo) DeleteStale(ctx context.Context, expiredBefore time.Time, usedBefore time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteStaleTokens, expiredBefore, usedBefore)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	return t, err
}
