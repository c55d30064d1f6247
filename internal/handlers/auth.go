package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/logger"
)

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := as.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		as.SetRefreshCookie(w, pair)
		render.JSON(w, accessTokenResponse{AccessToken: pair.Access.Value})
	})
}

func handleTokenRefresh(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := as.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := as.RefreshPair(r.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrRefreshTokenExpired):
				render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrRefreshTokenNotFound), errors.Is(err, apperrors.ErrRefreshTokenIsUsed):
				render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			default:
				renderError(w, r, l, err)
			}
			return
		}

		as.SetRefreshCookie(w, pair)
		render.JSON(w, accessTokenResponse{AccessToken: pair.Access.Value})
	})
}

func handleLogout(as authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		as.ClearRefreshCookie(w)
		render.Success(w)
	})
}
