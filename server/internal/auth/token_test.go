package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken("u1", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).GenerateToken("u1", "")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).VerifyToken(token)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, err := m.GenerateToken("u1", "")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyToken(tok)
		assert.True(t, apperr.Is(err, apperr.Unauthenticated), "token %q", tok)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter2"))
}
