package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// What happens to refresh token when it exchanged for a new pair
type RotationPolicy string

const (
	// Used refresh token is revoked: the second exchange fails with apperrors.ErrRefreshTokenIsUsed
	RotateWithRevocation RotationPolicy = "revoke"

	// Used refresh token stays valid until it expires
	RotateWithoutRevocation RotationPolicy = "keep"
)

func ParseRotationPolicy(value string) (RotationPolicy, error) {
	switch p := RotationPolicy(value); p {
	case RotateWithRevocation, RotateWithoutRevocation:
		return p, nil
	default:
		return "", fmt.Errorf("unknown refresh rotation policy %q", value)
	}
}

// Claims carried by both access and refresh tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID `json:"uid"`
	Username string    `json:"username"`
}

func (c Claims) User() models.User {
	return models.User{ID: c.UserID, Username: c.Username}
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Required to be set and should differ: refresh token must not pass as access one
	SecretKey        string
	RefreshSecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// If not set RotateWithRevocation is used
	RotationPolicy RotationPolicy
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	policy RotationPolicy

	// Refresh token repo
	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" || cfg.RefreshSecretKey == "" {
		return nil, errors.New("secret keys must not be empty")
	}
	if cfg.SecretKey == cfg.RefreshSecretKey {
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	if cfg.RotationPolicy == "" {
		cfg.RotationPolicy = RotateWithRevocation
	}
	if _, err := ParseRotationPolicy(string(cfg.RotationPolicy)); err != nil {
		return nil, err
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:   []byte(cfg.SecretKey),
		refreshKey:  []byte(cfg.RefreshSecretKey),
		alg:         alg,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		policy:      cfg.RotationPolicy,
		refreshRepo: refreshRepo,
	}, nil
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	access, err := m.sign(m.accessKey, user, uuid.New(), now, accessExpiresAt)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	// Refresh token jti is persisted: that is what makes revocation possible
	refreshID := uuid.New()
	refresh, err := m.sign(m.refreshKey, user, refreshID, now, refreshExpiresAt)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	_, err = m.refreshRepo.Save(ctx, models.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: refreshExpiresAt,
		UsedAt:    nil,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

// Use token: verify it and apply rotation policy
// Returns the user the token was issued to
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.User, error) {
	claims, err := m.parse(m.refreshKey, refresh)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.User{}, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	case err != nil:
		return models.User{}, fmt.Errorf("error while using refresh token. Err: %w (%w)", apperrors.ErrRefreshTokenNotFound, err)
	}

	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenNotFound)
	}

	var token models.RefreshToken
	switch m.policy {
	case RotateWithoutRevocation:
		token, err = m.refreshRepo.Get(ctx, tokenID)
	default:
		token, err = m.refreshRepo.GetAndMarkUsed(ctx, tokenID)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("error while using refresh token. Err: %w", err)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return models.User{}, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	return claims.User(), nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (models.User, error) {
	claims, err := m.parse(m.accessKey, access)
	if err != nil {
		return models.User{}, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return claims.User(), nil
}

func (m *TokenManager) sign(key []byte, user models.User, id uuid.UUID, issuedAt time.Time, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        id.String(),
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(issuedAt),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:   user.ID,
			Username: user.Username,
		},
	)
	return token.SignedString(key)
}

func (m *TokenManager) parse(key []byte, value string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil || claims.Username == "" {
		return nil, errors.New("token has no user claims")
	}

	return claims, nil
}
