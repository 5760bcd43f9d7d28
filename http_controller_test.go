package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationCreatePayloadValidate(t *testing.T) {
	valid := auth.RegistrationCreatePayload{
		Username: "jane.doe",
		Email:    "jane@example.com",
		Password: "password123",
	}

	assert.NoError(t, valid.Validate())

	t.Run("password at the bcrypt limit is accepted", func(t *testing.T) {
		payload := valid
		payload.Password = strings.Repeat("p", auth.MaxPasswordLength)
		require.NoError(t, payload.Validate())

		// The validation cap and the hash limit have to agree; anything
		// the payload accepts must also hash.
		_, err := auth.HashPassword(payload.Password)
		assert.NoError(t, err)
	})

	t.Run("password over the bcrypt limit is rejected", func(t *testing.T) {
		payload := valid
		payload.Password = strings.Repeat("p", auth.MaxPasswordLength+1)
		assert.Error(t, payload.Validate())
	})

	t.Run("short password is rejected", func(t *testing.T) {
		payload := valid
		payload.Password = "short"
		assert.Error(t, payload.Validate())
	})

	t.Run("missing username is rejected", func(t *testing.T) {
		payload := valid
		payload.Username = ""
		assert.Error(t, payload.Validate())
	})

	t.Run("malformed email is rejected", func(t *testing.T) {
		payload := valid
		payload.Email = "not-an-email"
		assert.Error(t, payload.Validate())
	})
}
