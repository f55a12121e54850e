package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserDirectory(t *testing.T) {
	scope, ctx := newTestScope(t)
	users := NewUserStore(scope.q)

	u, code, err := users.Create(ctx, strPtr("Jan"))
	require.NoError(t, err)
	require.NotNil(t, u)

	assert.Len(t, u.UserHash, 8)
	assert.Len(t, code, 5)
	// Only the bcrypt hash is stored.
	assert.NotEqual(t, code, u.AuthCodeHash)

	id, err := users.CheckAuthCode(ctx, u.UserHash, code)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	id, err = users.CheckAuthCode(ctx, u.UserHash, "WRONG")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = users.CheckAuthCode(ctx, "nosuchhash", code)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestGetUserByHashAbsent(t *testing.T) {
	scope, ctx := newTestScope(t)
	users := NewUserStore(scope.q)

	u, err := users.GetByHash(ctx, "doesnotexist")
	require.NoError(t, err)
	assert.Nil(t, u)
}
