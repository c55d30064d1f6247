package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/handlers/userctx"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func handleCreateUser(us userService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,username"`
		Password string `json:"password" validate:"required,userpassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := us.Create(r.Context(), data.Username, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Created(w, newUserResponse(user))
	})
}

func handleListUsers(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, err := us.List(r.Context())
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		response := make([]userResponse, 0, len(users))
		for _, u := range users {
			response = append(response, newUserResponse(u))
		}
		render.JSON(w, response)
	})
}

func handleGetUser(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := us.Get(r.Context(), r.PathValue("username"))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, newUserResponse(user))
	})
}

func handleUpdateUser(us userService, l logger.Logger) http.Handler {
	type request struct {
		Password string `json:"password" validate:"required,userpassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := us.ChangePassword(r.Context(), actor, r.PathValue("username"), data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, newUserResponse(user))
	})
}

func handleDeleteUser(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		err := us.Delete(r.Context(), actor, r.PathValue("username"))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.Success(w)
	})
}

func handleListUserRooms(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		rooms, err := us.ListRooms(r.Context(), actor, r.PathValue("username"))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, summaries(rooms))
	})
}
