package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// List all users ordered by username
	ListUsers(ctx context.Context) ([]models.User, error)

	SetPasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) (models.User, error)

	// Delete user. Rooms the user administers, messages and memberships are deleted too
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even if it expired or used already
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error)

	// Mark token used and return it
	// If the token is used already, must return apperrors.ErrRefreshTokenIsUsed and must not overwrite 'usedAt'
	GetAndMarkUsed(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error)

	// Delete tokens expired before 'expiredBefore' or used before 'usedBefore'
	DeleteStale(ctx context.Context, expiredBefore time.Time, usedBefore time.Time) (deleted int64, err error)
}

type SearchRoomsOpts struct {
	// Case-insensitive substring, empty matches everything
	NameFilter string

	// Only rooms with name strictly greater than After, empty means no bound
	After string

	// Zero means no limit
	Limit int
}

// Room repository interface
type RoomRepo interface {
	// If room with the same name exists has to return apperrors.ErrRoomAlreadyExists
	CreateRoom(ctx context.Context, name string, admin models.User, passwordHash string) (models.Room, error)

	// If room not found must return apperrors.ErrRoomNotFound
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)

	ListRooms(ctx context.Context) ([]models.Room, error)
	SearchRooms(ctx context.Context, opts SearchRoomsOpts) ([]models.Room, error)

	// Rooms the user is member of
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)

	SetPasswordHash(ctx context.Context, roomID uuid.UUID, passwordHash string) (models.Room, error)

	// Delete room with its messages and memberships
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error

	IsMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (bool, error)

	// Add membership. Idempotent: 'added' is false if user was a member already
	AddMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (added bool, err error)

	// Remove membership. Idempotent: 'removed' is false if user was not a member
	RemoveMember(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (removed bool, err error)
}

// Position of a message in room history
type MessageCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type ListMessagesOpts struct {
	RoomID uuid.UUID

	// Only messages strictly older than the cursor, nil means no bound
	Before *MessageCursor

	// Zero means no limit
	Limit int
}

// Message repository interface
type MessageRepo interface {
	CreateMessage(ctx context.Context, roomID uuid.UUID, sender models.User, body string) (models.Message, error)

	// If message not found must return apperrors.ErrMessageNotFound
	GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error)

	// Messages ordered from newest to oldest
	ListMessages(ctx context.Context, opts ListMessagesOpts) ([]models.Message, error)

	UpdateBody(ctx context.Context, messageID uuid.UUID, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Room() RoomRepo
	Message() MessageRepo

	// Run fn in transaction. Storage passed to fn is bound to the transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
