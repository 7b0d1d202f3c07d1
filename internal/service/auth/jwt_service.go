package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type accepted for API calls.
const TokenTypeAccess = "access"

// JWTService validates the access tokens that identify the chart owner.
// Tokens are issued by the account service; this service only checks them.
type JWTService interface {
	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the identity carried by a validated access token.
type Claims struct {
	// UserID is the chart owner. It is taken from the subject claim.
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenType is empty or "access".
	TokenType string `json:"type,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
