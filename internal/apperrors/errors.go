package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("wrong username or password")
	ErrPasswordUnchanged  = errors.New("new password matches the current one")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrRoomAlreadyExists     = errors.New("chat room already exists")
	ErrRoomNotFound          = errors.New("chat room not found")
	ErrRoomPasswordRequired  = errors.New("chat room password required")
	ErrRoomPasswordWrong     = errors.New("chat room password is wrong")
	ErrRoomPasswordUnchanged = errors.New("chat room password unchanged")
	ErrNotRoomMember         = errors.New("user is not a member of the chat room")
	ErrNotRoomAdmin          = errors.New("user is not the chat room admin")

	ErrMessageNotFound  = errors.New("message not found")
	ErrMessageEmpty     = errors.New("message body is empty")
	ErrMessageUnchanged = errors.New("message body unchanged")
	ErrNotMessageSender = errors.New("user is not the message sender")

	ErrForbidden = errors.New("forbidden")
)
