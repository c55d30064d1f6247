package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/realtime"
)

var serviceErrors = []struct {
	err     error
	message string
	code    int
}{
	{apperrors.ErrInvalidCredentials, "Wrong username or password", http.StatusUnprocessableEntity},
	{apperrors.ErrPasswordUnchanged, "New password matches the current one", http.StatusUnprocessableEntity},
	{apperrors.ErrRoomPasswordRequired, "Chat room password required", http.StatusUnprocessableEntity},
	{apperrors.ErrRoomPasswordWrong, "Wrong chat room password", http.StatusUnprocessableEntity},
	{apperrors.ErrRoomPasswordUnchanged, "Chat room password unchanged", http.StatusUnprocessableEntity},
	{apperrors.ErrMessageEmpty, "Message body is empty", http.StatusUnprocessableEntity},
	{apperrors.ErrMessageUnchanged, "Message body unchanged", http.StatusUnprocessableEntity},

	{apperrors.ErrForbidden, "Forbidden", http.StatusForbidden},
	{apperrors.ErrNotRoomAdmin, "Only chat room admin allowed", http.StatusForbidden},
	{apperrors.ErrNotRoomMember, "Not a chat room member", http.StatusForbidden},
	{apperrors.ErrNotMessageSender, "Only message sender allowed", http.StatusForbidden},

	{apperrors.ErrUserNotFound, "User not found", http.StatusNotFound},
	{apperrors.ErrRoomNotFound, "Chat room not found", http.StatusNotFound},
	{apperrors.ErrMessageNotFound, "Message not found", http.StatusNotFound},
	{realtime.ErrConnectionNotFound, "Connection not found", http.StatusNotFound},

	{apperrors.ErrUserAlreadyExists, "User already exists", http.StatusConflict},
	{apperrors.ErrRoomAlreadyExists, "Chat room already exists", http.StatusConflict},
}

// renderError maps service error to response. Unknown errors are logged and rendered as 500
func renderError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			render.ServiceError(w, se.message, se.code)
			return
		}
	}

	l.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
