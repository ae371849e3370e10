package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
)

func newTestJWTService() *JWTService {
	return NewJWTService(
		"test-secret-key-for-testing-purposes",
		time.Hour,
		30*24*time.Hour,
	)
}

// ============================================
// Access Tokens
// ============================================

func TestGenerateAccessToken(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken("user-123", "taro@example.com", "CUSTOMER")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
}

func TestValidateAccessToken_RoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, _, err := service.GenerateAccessToken("user-456", "admin@example.com", "ADMIN")
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "user-456", claims.Subject)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret", time.Millisecond, 30*24*time.Hour)

	token, _, err := service.GenerateAccessToken("user-123", "taro@example.com", "CUSTOMER")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := service.ValidateAccessToken(token)

	assert.True(t, apperr.IsCode(err, apperr.CodeTokenExpired))
	assert.Nil(t, claims)
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	service := newTestJWTService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"mangled signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
			assert.Nil(t, claims)
		})
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-key-1", time.Hour, 30*24*time.Hour)
	verifier := NewJWTService("secret-key-2", time.Hour, 30*24*time.Hour)

	token, _, err := issuer.GenerateAccessToken("user-123", "taro@example.com", "CUSTOMER")
	require.NoError(t, err)

	claims, err := verifier.ValidateAccessToken(token)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
	assert.Nil(t, claims)
}

func TestValidateAccessToken_NoneAlgorithmRejected(t *testing.T) {
	service := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-123",
		Email:  "taro@example.com",
		Role:   "CUSTOMER",
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(tokenString)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
	assert.Nil(t, claims)
}

// ============================================
// Refresh Tokens
// ============================================

func TestValidateRefreshToken_RoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateRefreshToken("user-789")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), expiresAt, 5*time.Second)

	userID, err := service.ValidateRefreshToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-789", userID)
}

func TestValidateRefreshToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour, time.Millisecond)

	token, _, err := service.GenerateRefreshToken("user-123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	userID, err := service.ValidateRefreshToken(token)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRefreshToken))
	assert.Empty(t, userID)
}

func TestValidateRefreshToken_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-key-1", time.Hour, 30*24*time.Hour)
	verifier := NewJWTService("secret-key-2", time.Hour, 30*24*time.Hour)

	token, _, err := issuer.GenerateRefreshToken("user-123")
	require.NoError(t, err)

	userID, err := verifier.ValidateRefreshToken(token)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRefreshToken))
	assert.Empty(t, userID)
}

func TestRefreshTokenCarriesNoIdentityClaims(t *testing.T) {
	service := newTestJWTService()

	refreshToken, _, err := service.GenerateRefreshToken("user-123")
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(refreshToken)

	require.NoError(t, err)
	assert.Empty(t, claims.UserID)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Role)
	assert.Equal(t, "user-123", claims.Subject)
}
