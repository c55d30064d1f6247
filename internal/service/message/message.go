package message

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/realtime"
	"github.com/nkiryanov/chatrooms/internal/repository"
)

type hub interface {
	Broadcast(roomID uuid.UUID, event string, data any)
	StopTyping(user models.User, roomID uuid.UUID)
}

type MessageService struct {
	storage repository.Storage
	hub     hub
}

func NewService(storage repository.Storage, hub hub) *MessageService {
	return &MessageService{
		storage: storage,
		hub:     hub,
	}
}

type ListOpts struct {
	// Id of the oldest message already seen. Empty for the newest page
	Before string

	// Zero or negative means no limit
	Limit int
}

// List room history from newest to oldest, one page at a time
func (s *MessageService) List(ctx context.Context, user models.User, roomID uuid.UUID, opts ListOpts) ([]models.Message, error) {
	if err := s.requireMember(ctx, user, roomID); err != nil {
		return nil, err
	}

	listOpts := repository.ListMessagesOpts{
		RoomID: roomID,
		Limit:  opts.Limit,
	}

	if opts.Before != "" {
		cursor, err := s.resolveCursor(ctx, roomID, opts.Before)
		if err != nil {
			return nil, err
		}
		listOpts.Before = &cursor
	}

	return s.storage.Message().ListMessages(ctx, listOpts)
}

// Post message to the room and tell everyone in it
func (s *MessageService) Create(ctx context.Context, user models.User, roomID uuid.UUID, body string) (models.Message, error) {
	var msg models.Message

	body = strings.TrimSpace(body)
	if body == "" {
		return msg, apperrors.ErrMessageEmpty
	}

	if err := s.requireMember(ctx, user, roomID); err != nil {
		return msg, err
	}

	msg, err := s.storage.Message().CreateMessage(ctx, roomID, user, body)
	if err != nil {
		return msg, err
	}

	s.hub.Broadcast(roomID, realtime.EventAddMessage, msg)
	s.hub.StopTyping(user, roomID)
	return msg, nil
}

func (s *MessageService) Get(ctx context.Context, user models.User, messageID uuid.UUID) (models.Message, error) {
	msg, err := s.storage.Message().GetMessage(ctx, messageID)
	if err != nil {
		return msg, err
	}

	if err := s.requireMember(ctx, user, msg.RoomID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Edit message body. Sender only
func (s *MessageService) Edit(ctx context.Context, user models.User, messageID uuid.UUID, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, apperrors.ErrMessageEmpty
	}

	msg, err := s.getSent(ctx, user, messageID)
	if err != nil {
		return msg, err
	}
	if msg.Body == body {
		return msg, apperrors.ErrMessageUnchanged
	}

	msg, err = s.storage.Message().UpdateBody(ctx, msg.ID, body)
	if err != nil {
		return msg, err
	}

	s.hub.Broadcast(msg.RoomID, realtime.EventEditMessage, msg)
	return msg, nil
}

// Delete message. Sender only
func (s *MessageService) Delete(ctx context.Context, user models.User, messageID uuid.UUID) error {
	msg, err := s.getSent(ctx, user, messageID)
	if err != nil {
		return err
	}

	if err := s.storage.Message().DeleteMessage(ctx, msg.ID); err != nil {
		return err
	}

	s.hub.Broadcast(msg.RoomID, realtime.EventDeleteMessage, msg.ID)
	return nil
}

// Cursor is a message id. It has to point to a message of the same room
func (s *MessageService) resolveCursor(ctx context.Context, roomID uuid.UUID, before string) (repository.MessageCursor, error) {
	var cursor repository.MessageCursor

	id, err := uuid.Parse(before)
	if err != nil {
		return cursor, apperrors.ErrMessageNotFound
	}

	msg, err := s.storage.Message().GetMessage(ctx, id)
	if err != nil {
		return cursor, err
	}
	if msg.RoomID != roomID {
		return cursor, apperrors.ErrMessageNotFound
	}

	return repository.MessageCursor{CreatedAt: msg.CreatedAt, ID: msg.ID}, nil
}

func (s *MessageService) getSent(ctx context.Context, user models.User, messageID uuid.UUID) (models.Message, error) {
	msg, err := s.storage.Message().GetMessage(ctx, messageID)
	if err != nil {
		return msg, err
	}
	if msg.SenderID != user.ID {
		return msg, apperrors.ErrNotMessageSender
	}
	return msg, nil
}

// Non-members get 403 for existing rooms and 404 for missing ones
func (s *MessageService) requireMember(ctx context.Context, user models.User, roomID uuid.UUID) error {
	member, err := s.storage.Room().IsMember(ctx, user.ID, roomID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}

	if _, err := s.storage.Room().GetRoom(ctx, roomID); err != nil {
		return err
	}
	return apperrors.ErrNotRoomMember
}
