package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/handlers/userctx"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/models"
)

func summaries(rooms []models.Room) []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

// Not a number or not positive limit means 'no limit'
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// Malformed id can't point to existing resource, so it is reported as notFound
func pathID(r *http.Request, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func handleListRooms(rs roomService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rooms, err := rs.List(r.Context())
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, summaries(rooms))
	})
}

func handleCreateRoom(rs roomService, l logger.Logger) http.Handler {
	type request struct {
		Name     string `json:"name" validate:"required,roomname"`
		Password string `json:"password" validate:"roompassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		room, err := rs.Create(r.Context(), admin, data.Name, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Created(w, room.Summary())
	})
}

func handleSearchRooms(rs roomService, l logger.Logger) http.Handler {
	type request struct {
		NameFilter string `json:"nameFilter" validate:"max=100"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No body means no filter
		data, err := render.BindOptional[request](w, r)
		if err != nil {
			return
		}

		rooms, err := rs.Search(r.Context(), data.NameFilter, r.URL.Query().Get("after"), parseLimit(r))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, summaries(rooms))
	})
}

func handleGetRoom(rs roomService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		room, err := rs.Get(r.Context(), id)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, room.Summary())
	})
}

func handleUpdateRoom(rs roomService, l logger.Logger) http.Handler {
	type request struct {
		Password string `json:"password" validate:"roompassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		room, err := rs.ChangePassword(r.Context(), actor, id, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, room.Summary())
	})
}

func handleDeleteRoom(rs roomService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if err := rs.Delete(r.Context(), actor, id); err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Success(w)
	})
}

func handleRoomLogin(rs roomService, l logger.Logger) http.Handler {
	type request struct {
		SocketID string `json:"socketId" validate:"required"`
		Password string `json:"password"`
	}
	type response struct {
		ID           uuid.UUID `json:"id"`
		Name         string    `json:"name"`
		Admin        string    `json:"admin"`
		NewRoomAdded bool      `json:"newRoomAdded"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		login, err := rs.Login(r.Context(), user, id, data.SocketID, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, response{
			ID:           login.Room.ID,
			Name:         login.Room.Name,
			Admin:        login.Room.Admin,
			NewRoomAdded: login.NewRoomAdded,
		})
	})
}

func handleRoomLogout(rs roomService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		id, err := pathID(r, apperrors.ErrRoomNotFound)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if err := rs.Logout(r.Context(), user, id); err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Success(w)
	})
}
