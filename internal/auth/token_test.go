package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	manager := auth.NewTokenManager("test-secret", 30)

	token, expiresAt, err := manager.GenerateToken("user-1", domain.RoleAgent)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, domain.RoleAgent, claims.Role)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	issuer := auth.NewTokenManager("secret-a", 30)
	verifier := auth.NewTokenManager("secret-b", 30)

	token, _, err := issuer.GenerateToken("user-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	manager := auth.NewTokenManager("test-secret", 30)
	_, err := manager.ParseToken("not-a-jwt")
	assert.Error(t, err)
}
