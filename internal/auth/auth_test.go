package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager("test-secret", time.Hour, []string{"admin", "research_lead"})
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken(Identity{UserID: "user-1", Role: "analyst"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "analyst", id.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-secret", time.Hour, nil)

	token, err := other.GenerateToken(Identity{UserID: "user-1"})
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, nil)

	token, err := m.GenerateToken(Identity{UserID: "user-1"})
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	m := newTestManager()
	_, err := m.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestElevated(t *testing.T) {
	m := newTestManager()
	assert.True(t, m.Elevated(Identity{UserID: "u", Role: "admin"}))
	assert.True(t, m.Elevated(Identity{UserID: "u", Role: "research_lead"}))
	assert.False(t, m.Elevated(Identity{UserID: "u", Role: "analyst"}))
	assert.False(t, m.Elevated(Identity{UserID: "u"}))
}

func TestIdentityContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "user-9", Role: "admin"})

	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-9", id.UserID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
