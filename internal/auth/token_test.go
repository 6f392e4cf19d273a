package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	agentID := uuid.New()
	token, err := Sign("secret", agentID, "Ayse Demir", "agent", time.Hour)
	require.NoError(t, err)

	claims, err := Parse("secret", token)
	require.NoError(t, err)
	assert.Equal(t, agentID.String(), claims.AgentID)
	assert.Equal(t, "Ayse Demir", claims.FullName)
	assert.Equal(t, "agent", claims.Role)

	parsed, err := claims.AgentUUID()
	require.NoError(t, err)
	assert.Equal(t, agentID, parsed)
}

func TestParseWrongSecret(t *testing.T) {
	token, err := Sign("secret", uuid.New(), "Ayse Demir", "agent", time.Hour)
	require.NoError(t, err)

	_, err = Parse("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	token, err := Sign("secret", uuid.New(), "Ayse Demir", "agent", -time.Minute)
	require.NoError(t, err)

	_, err = Parse("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignWithoutSecret(t *testing.T) {
	_, err := Sign("", uuid.New(), "Ayse Demir", "agent", time.Hour)
	assert.Error(t, err)

	_, err = Parse("", "whatever")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
