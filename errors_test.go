package auth_test

import (
	"errors"
	"net/http"
	"testing"

	auth "github.com/goliatone/go-auth-sessions"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected int
	}{
		{"identity not found", auth.ErrIdentityNotFound, http.StatusUnauthorized},
		{"invalid credentials", auth.ErrMismatchedHashAndPassword, http.StatusUnauthorized},
		{"wrong provider", auth.ErrWrongProvider, http.StatusUnauthorized},
		{"email not verified", auth.ErrEmailNotVerified, http.StatusUnauthorized},
		{"refresh token invalid", auth.ErrRefreshTokenInvalid, http.StatusUnauthorized},
		{"refresh token expired", auth.ErrRefreshTokenExpired, http.StatusForbidden},
		{"verification token not found", auth.ErrVerificationTokenNotFound, http.StatusBadRequest},
		{"verification token expired", auth.ErrVerificationTokenExpired, http.StatusBadRequest},
		{"email taken", auth.ErrEmailTaken, http.StatusConflict},
		{"username taken", auth.ErrUsernameTaken, http.StatusConflict},
		{"too many attempts", auth.ErrTooManyLoginAttempts, http.StatusTooManyRequests},
		{"not found category", goerrors.New("missing", goerrors.CategoryNotFound), http.StatusNotFound},
		{"authz category", goerrors.New("nope", goerrors.CategoryAuthz), http.StatusForbidden},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"store failure", auth.WrapStoreError(errors.New("db down"), "query failed"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, auth.StatusForError(tc.err))
		})
	}
}

func TestIsStoreUnavailable(t *testing.T) {
	assert.True(t, auth.IsStoreUnavailable(auth.WrapStoreError(errors.New("db down"), "query failed")))
	assert.False(t, auth.IsStoreUnavailable(auth.ErrSessionNotFound))
	assert.False(t, auth.IsStoreUnavailable(errors.New("boom")))
}

func TestTokenErrorPredicates(t *testing.T) {
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.False(t, auth.IsTokenExpiredError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsTokenExpiredError(nil))

	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsMalformedError(errors.New("missing or malformed JWT")))
	assert.False(t, auth.IsMalformedError(nil))
}
