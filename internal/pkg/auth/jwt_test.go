package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
)

func newTestJWT() *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "scms-test",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newTestJWT()
	user := &models.User{ID: 7, Username: "jdoe", Email: "jdoe@example.com", RoleType: models.RoleStudent}

	pair, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 3600, pair.ExpiresIn)

	claims, err := svc.ValidateAndExtractClaims(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, "student", claims.RoleType)
	assert.NotEmpty(t, claims.ID)
	assert.InDelta(t, time.Hour.Seconds(), svc.RemainingTTL(claims).Seconds(), 5)
}

func TestValidateExpired(t *testing.T) {
	svc := newTestJWT()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := svc.GenerateTokenPair(&models.User{ID: 1, Username: "a"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateWrongSecret(t *testing.T) {
	pair, err := newTestJWT().GenerateTokenPair(&models.User{ID: 1, Username: "a"})
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "scms-test"})
	_, err = other.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = ExtractBearerToken("")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ExtractBearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestPassword(t *testing.T) {
	hash, err := HashPasswordWithCost("secret123", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
