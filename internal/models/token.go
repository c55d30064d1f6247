package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record of an issued refresh token.
// ID is the token's jti claim, the token value itself is never stored.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
