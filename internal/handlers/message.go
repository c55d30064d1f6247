package handlers

import (
	"net/http"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/handlers/userctx"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/service/message"
)

type messageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func handleListMessages(ms messageService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		roomID, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		messages, err := ms.List(r.Context(), user, roomID, message.ListOpts{
			Before: r.URL.Query().Get("before"),
			Limit:  parseLimit(r),
		})
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if messages == nil {
			messages = []models.Message{}
		}
		render.JSON(w, messages)
	})
}

func handleCreateMessage(ms messageService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		roomID, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[messageRequest](w, r)
		if err != nil {
			return
		}

		msg, err := ms.Create(r.Context(), user, roomID, data.Body)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Created(w, msg)
	})
}

func handleGetMessage(ms messageService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrMessageNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		msg, err := ms.Get(r.Context(), user, id)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, msg)
	})
}

func handleUpdateMessage(ms messageService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrMessageNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[messageRequest](w, r)
		if err != nil {
			return
		}

		msg, err := ms.Edit(r.Context(), user, id, data.Body)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, msg)
	})
}

func handleDeleteMessage(ms messageService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrMessageNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if err := ms.Delete(r.Context(), user, id); err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Success(w)
	})
}
