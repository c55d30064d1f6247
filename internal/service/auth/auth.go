package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshToken"
	defaultRefreshCookiePath = "/api/auth/refresh-token"
)

var ErrNoToken = errors.New("no token in request")

type tokenManager interface {
	GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error)
	UseRefresh(ctx context.Context, refresh string) (models.User, error)
	ParseAccess(ctx context.Context, access string) (models.User, error)
	RefreshTTL() time.Duration
}

type Config struct {
	// Header and scheme access token is read from: 'Authorization: Bearer <token>'
	AccessHeaderName string
	AccessAuthScheme string

	// Refresh cookie is sent by browsers to the refresh endpoint only
	RefreshCookieName string
	RefreshCookiePath string

	// Set cookie without 'Secure' flag. Development over plain http only
	InsecureCookie bool

	// Hasher to use during login process
	Hasher PasswordHasher
}

// Auth service
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	refreshCookiePath string
	insecureCookie    bool

	// hasher to compare user passwords
	hasher PasswordHasher

	// Manager to issue token pairs (access and refresh)
	tokenManager tokenManager

	userRepo repository.UserRepo
}

func NewService(cfg Config, tokenManager tokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.RefreshCookiePath, defaultRefreshCookiePath)

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		refreshCookiePath: cfg.RefreshCookiePath,
		insecureCookie:    cfg.InsecureCookie,
		hasher:            cfg.Hasher,
		tokenManager:      tokenManager,
		userRepo:          userRepo,
	}, nil
}

// Login user with username and password
// Wrong username and wrong password are not distinguished: both are apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.tokenManager.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Exchange refresh token to a new pair
// The user is read from storage: deleted users can't refresh
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	claimed, err := s.tokenManager.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claimed.ID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.ErrRefreshTokenNotFound
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	pair, err := s.tokenManager.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Verify access token and return user it was issued for
func (s *AuthService) ParseAccess(ctx context.Context, access string) (models.User, error) {
	return s.tokenManager.ParseAccess(ctx, access)
}

// Get request and return user if it authenticated or error
func (s *AuthService) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	access, err := s.GetAccessString(r)
	if err != nil {
		return models.User{}, err
	}
	return s.tokenManager.ParseAccess(ctx, access)
}

// Read access token from 'Authorization: Bearer <token>' header
func (s *AuthService) GetAccessString(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || token == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

// Get refresh token from request
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoToken
	}
	return cookie.Value, nil
}

// Set refresh token cookie. Access token goes to response body, it is up to handler
func (s *AuthService) SetRefreshCookie(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     s.refreshCookiePath,
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   !s.insecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear refresh token cookie: path must match the one cookie was set with
func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     s.refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.insecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
