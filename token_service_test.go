package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-sessions"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (s staticIdentity) ID() string       { return s.id }
func (s staticIdentity) Username() string { return s.username }
func (s staticIdentity) Email() string    { return s.email }
func (s staticIdentity) Role() string     { return s.role }

func newTokenService(key string) auth.TokenService {
	return auth.NewTokenService([]byte(key), "test-issuer", jwt.ClaimStrings{"test-audience"}, nil)
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	svc := newTokenService("signing-key")

	identity := staticIdentity{
		id:   uuid.NewString(),
		role: auth.RoleUser,
	}
	sessionToken := uuid.NewString()
	expires := time.Now().Add(15 * time.Minute)

	raw, err := svc.Generate(identity, sessionToken, expires)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := svc.Validate(raw)
	require.NoError(t, err)

	assert.Equal(t, identity.id, claims.UserID())
	assert.Equal(t, identity.id, claims.Subject())
	assert.Equal(t, auth.RoleUser, claims.Role())
	assert.Equal(t, sessionToken, claims.SessionToken())
	assert.Equal(t, expires.Unix(), claims.Expires().Unix())
	assert.False(t, claims.IssuedAt().IsZero())
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc := newTokenService("signing-key")

	raw, err := svc.Generate(staticIdentity{id: uuid.NewString()}, uuid.NewString(), time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.Validate(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenServiceRejectsWrongKey(t *testing.T) {
	raw, err := newTokenService("signing-key").Generate(staticIdentity{id: uuid.NewString()}, uuid.NewString(), time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = newTokenService("other-key").Validate(raw)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "TOKEN_MALFORMED", richErr.TextCode)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	other := auth.NewTokenService([]byte("signing-key"), "other-issuer", jwt.ClaimStrings{"test-audience"}, nil)

	raw, err := other.Generate(staticIdentity{id: uuid.NewString()}, uuid.NewString(), time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = newTokenService("signing-key").Validate(raw)
	assert.Error(t, err)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	_, err := newTokenService("signing-key").Validate("not-a-jwt")
	require.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
}
