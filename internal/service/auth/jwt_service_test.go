package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims accessClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func claimsFor(subject, tokenType string, issued time.Time, lifetime time.Duration) accessClaims {
	return accessClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(lifetime)),
			ID:        uuid.NewString(),
		},
	}
}

func TestNewJWTService_SecretLength(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	svc := newJWTService(testSecret, func() time.Time { return fixedTime })

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "valid access token",
			token: signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(userID.String(), TokenTypeAccess, fixedTime, time.Hour)),
		},
		{
			name:  "untyped token",
			token: signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(userID.String(), "", fixedTime, time.Hour)),
		},
		{
			name:    "expired beyond clock skew",
			token:   signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(userID.String(), TokenTypeAccess, fixedTime.Add(-2*time.Hour), time.Hour)),
			wantErr: ErrExpiredToken,
		},
		{
			name:    "wrong secret",
			token:   signToken(t, "wrong-secret-that-is-long-enough-for-testing", jwt.SigningMethodHS256, claimsFor(userID.String(), TokenTypeAccess, fixedTime, time.Hour)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "different hmac method",
			token:   signToken(t, testSecret, jwt.SigningMethodHS512, claimsFor(userID.String(), TokenTypeAccess, fixedTime, time.Hour)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "refresh token",
			token:   signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(userID.String(), "refresh", fixedTime, time.Hour)),
			wantErr: ErrWrongTokenType,
		},
		{
			name:    "subject is not a user id",
			token:   signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor("alice", TokenTypeAccess, fixedTime, time.Hour)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed",
			token:   "not.a.jwt",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing",
			token:   "",
			wantErr: ErrMissingToken,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := svc.ValidateToken(context.Background(), tc.token)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
			assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
		})
	}
}

func TestValidateToken_ClockSkew(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	token := signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(userID.String(), TokenTypeAccess, issued, time.Hour))

	// One minute past expiry is still inside the allowed skew.
	svc := newJWTService(testSecret, func() time.Time { return issued.Add(61 * time.Minute) })
	_, err := svc.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
}
