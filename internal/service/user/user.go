package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
	"github.com/nkiryanov/chatrooms/internal/service/auth"
)

// Live connections of deleted user have to be dropped
type hub interface {
	DisconnectUser(userID uuid.UUID)
}

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
	hub     hub
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, hub hub) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
		hub:     hub,
	}
}

func (s *UserService) Create(ctx context.Context, username string, password string) (models.User, error) {
	var user models.User
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, username, hash)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, username string) (models.User, error) {
	return s.storage.User().GetUserByUsername(ctx, username)
}

// Only the user may change own password. Setting the same password is rejected
func (s *UserService) ChangePassword(ctx context.Context, actor models.User, username string, password string) (models.User, error) {
	user, err := s.getOwned(ctx, actor, username)
	if err != nil {
		return user, err
	}

	if s.hasher.Compare(user.HashedPassword, password) == nil {
		return user, apperrors.ErrPasswordUnchanged
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().SetPasswordHash(ctx, user.ID, hash)
}

// Delete the user with everything they own and drop their connections
func (s *UserService) Delete(ctx context.Context, actor models.User, username string) error {
	user, err := s.getOwned(ctx, actor, username)
	if err != nil {
		return err
	}

	if err := s.storage.User().DeleteUser(ctx, user.ID); err != nil {
		return err
	}

	s.hub.DisconnectUser(user.ID)
	return nil
}

// Rooms the user has joined. Nobody else may see them
func (s *UserService) ListRooms(ctx context.Context, actor models.User, username string) ([]models.Room, error) {
	user, err := s.getOwned(ctx, actor, username)
	if err != nil {
		return nil, err
	}

	return s.storage.Room().ListUserRooms(ctx, user.ID)
}

func (s *UserService) getOwned(ctx context.Context, actor models.User, username string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, err
	case err != nil:
		return user, fmt.Errorf("can't get user. Err: %w", err)
	case user.ID != actor.ID:
		return user, apperrors.ErrForbidden
	default:
		return user, nil
	}
}
