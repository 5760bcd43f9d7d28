package auth_test

import (
	"context"
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		name     string
		source   string
		expected string
	}{
		{"email local part", "jane.doe@example.com", "jane.doe"},
		{"display name with spaces", "Jane Doe", "jane-doe"},
		{"mixed case", "JaneDOE", "janedoe"},
		{"strips punctuation", "jane!#$doe", "janedoe"},
		{"keeps dashes and underscores", "jane-doe_99", "jane-doe_99"},
		{"trims separator edges", "-.jane.-", "jane"},
		{"empty source falls back", "!!!", "user"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, auth.NormalizeUsername(tc.source))
		})
	}

	t.Run("truncates to max length", func(t *testing.T) {
		long := strings.Repeat("a", auth.MaxUsernameLength+10)
		out := auth.NormalizeUsername(long)
		assert.Len(t, out, auth.MaxUsernameLength)
	})
}

func TestUniqueUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("no collision uses base", func(t *testing.T) {
		repo, db := setupRepo(t)

		name, err := auth.UniqueUsernameTx(ctx, db, repo.Users(), "jane.doe@example.com")
		require.NoError(t, err)
		assert.Equal(t, "jane.doe", name)
	})

	t.Run("collisions get numeric suffix", func(t *testing.T) {
		repo, db := setupRepo(t)

		mustCreateUser(t, repo, func(u *auth.User) {
			u.Username = "jane.doe"
			u.Email = "jane.doe@example.com"
		})

		name, err := auth.UniqueUsernameTx(ctx, db, repo.Users(), "jane.doe@other.com")
		require.NoError(t, err)
		assert.Equal(t, "jane.doe1", name)

		mustCreateUser(t, repo, func(u *auth.User) {
			u.Username = "jane.doe1"
			u.Email = "jane.doe@third.com"
		})

		name, err = auth.UniqueUsernameTx(ctx, db, repo.Users(), "jane.doe@fourth.com")
		require.NoError(t, err)
		assert.Equal(t, "jane.doe2", name)
	})
}
