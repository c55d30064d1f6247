package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
	"github.com/nkiryanov/chatrooms/internal/service/auth"
)

type hub interface {
	// Bind connection to the room. Has to return error if connection unknown or belongs to another user
	SetRoom(connID string, userID uuid.UUID, roomID uuid.UUID) error

	// Unbind every connection from deleted room
	CloseRoom(roomID uuid.UUID)
}

type RoomService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
	hub     hub
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, hub hub) *RoomService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &RoomService{
		hasher:  hasher,
		storage: storage,
		hub:     hub,
	}
}

// Create room. Admin becomes its first member
func (s *RoomService) Create(ctx context.Context, admin models.User, name string, password string) (models.Room, error) {
	var room models.Room

	hash, err := s.hashPassword(password)
	if err != nil {
		return room, err
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		room, err = storage.Room().CreateRoom(ctx, name, admin, hash)
		if err != nil {
			return err
		}
		_, err = storage.Room().AddMember(ctx, admin.ID, room.ID)
		return err
	})

	return room, err
}

func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	return s.storage.Room().ListRooms(ctx)
}

func (s *RoomService) Get(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	return s.storage.Room().GetRoom(ctx, roomID)
}

// Search rooms by case-insensitive name substring.
// Pages are ordered by name, 'after' is the last name of the previous page
func (s *RoomService) Search(ctx context.Context, nameFilter string, after string, limit int) ([]models.Room, error) {
	return s.storage.Room().SearchRooms(ctx, repository.SearchRoomsOpts{
		NameFilter: nameFilter,
		After:      after,
		Limit:      limit,
	})
}

// Set or remove (empty password) room password. Admin only
func (s *RoomService) ChangePassword(ctx context.Context, actor models.User, roomID uuid.UUID, password string) (models.Room, error) {
	room, err := s.getAdministered(ctx, actor, roomID)
	if err != nil {
		return room, err
	}

	switch {
	case password == "" && !room.HasPassword():
		return room, apperrors.ErrRoomPasswordUnchanged
	case password != "" && room.HasPassword() && s.hasher.Compare(room.PasswordHash, password) == nil:
		return room, apperrors.ErrRoomPasswordUnchanged
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return room, err
	}

	return s.storage.Room().SetPasswordHash(ctx, room.ID, hash)
}

// Delete room with its messages. Admin only
func (s *RoomService) Delete(ctx context.Context, actor models.User, roomID uuid.UUID) error {
	room, err := s.getAdministered(ctx, actor, roomID)
	if err != nil {
		return err
	}

	if err := s.storage.Room().DeleteRoom(ctx, room.ID); err != nil {
		return err
	}

	s.hub.CloseRoom(room.ID)
	return nil
}

// Login joins the room: membership is added once (password is checked for new members only)
// and the connection is switched to the room.
func (s *RoomService) Login(ctx context.Context, user models.User, roomID uuid.UUID, connID string, password string) (models.RoomLogin, error) {
	var login models.RoomLogin

	room, err := s.storage.Room().GetRoom(ctx, roomID)
	if err != nil {
		return login, err
	}

	member, err := s.storage.Room().IsMember(ctx, user.ID, room.ID)
	if err != nil {
		return login, err
	}

	added := false
	if !member {
		if room.HasPassword() {
			if password == "" {
				return login, apperrors.ErrRoomPasswordRequired
			}
			if s.hasher.Compare(room.PasswordHash, password) != nil {
				return login, apperrors.ErrRoomPasswordWrong
			}
		}

		added, err = s.storage.Room().AddMember(ctx, user.ID, room.ID)
		if err != nil {
			return login, err
		}
	}

	if err := s.hub.SetRoom(connID, user.ID, room.ID); err != nil {
		return login, err
	}

	return models.RoomLogin{
		Room:         room.Summary(),
		NewRoomAdded: added,
	}, nil
}

// Logout removes membership. Live connection bindings are left as they are
func (s *RoomService) Logout(ctx context.Context, user models.User, roomID uuid.UUID) error {
	room, err := s.storage.Room().GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	_, err = s.storage.Room().RemoveMember(ctx, user.ID, room.ID)
	return err
}

func (s *RoomService) getAdministered(ctx context.Context, actor models.User, roomID uuid.UUID) (models.Room, error) {
	room, err := s.storage.Room().GetRoom(ctx, roomID)
	if err != nil {
		return room, err
	}
	if room.AdminID != actor.ID {
		return room, apperrors.ErrNotRoomAdmin
	}
	return room, nil
}

// Empty password means the room is open
func (s *RoomService) hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("can't use this as password, Err: %w", err)
	}
	return hash, nil
}
