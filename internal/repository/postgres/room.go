package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
)

type RoomRepo struct {
	DB DBTX
}

const roomColumns = `r.id, r.name, r.admin_id, r.admin, r.password_hash, r.created_at, r.updated_at`

const createRoom = `-- name: CreateRoom
INSERT INTO rooms AS r (id, name, admin_id, admin, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + roomColumns

func (r *RoomRepo) CreateRoom(ctx context.Context, name string, admin models.User, passwordHash string) (models.Room, error) {
	rows, _ := r.DB.Query(ctx, createRoom, uuid.New(), name, admin.ID, admin.Username, passwordHash)
	room, err := pgx.CollectOneRow(rows, rowToRoom)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return room, apperrors.ErrRoomAlreadyExists
			case pgerrcode.ForeignKeyViolation:
				return room, apperrors.ErrUserNotFound
			}
		}

		return room, fmt.Errorf("db error: %w", err)
	}

	return room, nil
}

const getRoom = `-- name: GetRoom
SELECT ` + roomColumns + ` FROM rooms AS r
WHERE r.id = $1
`

func (r *RoomRepo) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	rows, _ := r.DB.Query(ctx, getRoom, roomID)
	return collectRoom(rows)
}

const listRooms = `-- name: ListRooms
SELECT ` + roomColumns + ` FROM rooms AS r
ORDER BY r.name
`

func (r *RoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, _ := r.DB.Query(ctx, listRooms)
	return collectRooms(rows)
}

// 'name' column uses ICU collation, so both comparison and ordering are locale-aware
// strpos is used instead of ILIKE to not treat '%' and '_' in filter as wildcards
// LIMIT NULL is the same as no limit
const searchRooms = `-- name: SearchRooms
SELECT ` + roomColumns + ` FROM rooms AS r
WHERE strpos(lower(r.name), lower($1::text)) > 0
  AND ($2::text = '' OR r.name > $2::text)
ORDER BY r.name
LIMIT $3
`

func (r *RoomRepo) SearchRooms(ctx context.Context, opts repository.SearchRoomsOpts) ([]models.Room, error) {
	rows, _ := r.DB.Query(ctx, searchRooms, opts.NameFilter, opts.After, limitOrNull(opts.Limit))
	return collectRooms(rows)
}

const listUserRooms = `-- name: ListUserRooms
SELECT ` + roomColumns + ` FROM rooms AS r
JOIN room_members AS m ON m.room_id = r.id
WHERE m.user_id = $1
ORDER BY r.name
`

func (r *RoomRepo) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rows, _ := r.DB.Query(ctx, listUserRooms, userID)
	return collectRooms(rows)
}

const setRoomPasswordHash = `-- name: SetRoomPasswordHash
UPDATE rooms AS r
SET password_hash = $2, updated_at = now()
WHERE r.id = $1
RETURNING ` + roomColumns

func (r *RoomRepo) SetPasswordHash(ctx context.Context, roomID uuid.UUID, passwordHash string) (models.Room, error) {
	rows, _ := r.DB.Query(ctx, setRoomPasswordHash, roomID, passwordHash)
	return collectRoom(rows)
}

const deleteRoom = `-- name: DeleteRoom
DELETE FROM rooms
WHERE id = $1
`

func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteRoom, roomID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrRoomNotFound
	default:
		return nil
	}
}

const isMember = `-- name: IsMember
SELECT EXISTS (
    SELECT 1 FROM room_members
    WHERE user_id = $1 AND room_id = $2
)
`

func (r *RoomRepo) IsMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (bool, error) {
	var member bool
	err := r.DB.QueryRow(ctx, isMember, userID, roomID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return member, nil
}

const addMember = `-- name: AddMember
INSERT INTO room_members (user_id, room_id)
VALUES ($1, $2)
ON CONFLICT (user_id, room_id) DO NOTHING
`

func (r *RoomRepo) AddMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (bool, error) {
	tag, err := r.DB.Exec(ctx, addMember, userID, roomID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return false, apperrors.ErrRoomNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const removeMember = `-- name: RemoveMember
DELETE FROM room_members
WHERE user_id = $1 AND room_id = $2
`

func (r *RoomRepo) RemoveMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (bool, error) {
	tag, err := r.DB.Exec(ctx, removeMember, userID, roomID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func collectRoom(rows pgx.Rows) (models.Room, error) {
	room, err := pgx.CollectOneRow(rows, rowToRoom)

	switch {
	case err == nil:
		return room, nil
	case errors.Is(err, pgx.ErrNoRows):
		return room, apperrors.ErrRoomNotFound
	default:
		return room, fmt.Errorf("db error: %w", err)
	}
}

func collectRooms(rows pgx.Rows) ([]models.Room, error) {
	rooms, err := pgx.CollectRows(rows, rowToRoom)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rooms, nil
}

func rowToRoom(row pgx.CollectableRow) (models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.Name, &r.AdminID, &r.Admin, &r.PasswordHash, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Zero or negative limit means no limit
func limitOrNull(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
