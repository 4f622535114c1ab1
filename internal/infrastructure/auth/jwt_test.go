package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/backend/internal/infrastructure/config"
)

func testJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-unit-tests-only",
		AccessTokenExpiration: time.Hour,
		Issuer:                "storeops-test",
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	service := testJWTService()
	userID := uuid.New()

	token, expiresAt, err := service.GenerateToken(userID, "mgr.kim", RoleManager)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "mgr.kim", claims.Username)
	assert.Equal(t, RoleManager, claims.Role)
	assert.True(t, claims.Role.IsPrivileged())

	parsed, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	service := testJWTService()
	other := NewJWTService(config.JWTConfig{
		Secret:                "a-completely-different-secret-value",
		AccessTokenExpiration: time.Hour,
		Issuer:                "storeops-test",
	})

	token, _, err := service.GenerateToken(uuid.New(), "clerk.lee", RoleClerk)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	service := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-unit-tests-only",
		AccessTokenExpiration: -time.Minute,
		Issuer:                "storeops-test",
	})

	token, _, err := service.GenerateToken(uuid.New(), "clerk.lee", RoleClerk)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	service := testJWTService()

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRolePrivileges(t *testing.T) {
	assert.False(t, RoleClerk.IsPrivileged())
	assert.True(t, RoleManager.IsPrivileged())
}
