package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-password")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret-password", hash)

	t.Run("matching password", func(t *testing.T) {
		assert.NoError(t, auth.ComparePasswordAndHash("s3cret-password", hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("wrong-password", hash)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := auth.HashPassword("")
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)

		err = auth.ComparePasswordAndHash("", hash)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}

func TestHashAndCompareRefreshSecret(t *testing.T) {
	hash, err := auth.HashRefreshSecret("refresh-secret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	t.Run("matching secret", func(t *testing.T) {
		assert.NoError(t, auth.CompareRefreshSecret("refresh-secret", hash))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := auth.CompareRefreshSecret("other-secret", hash)
		assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := auth.HashRefreshSecret("")
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})
}
