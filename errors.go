package auth

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is a single undifferentiated signal for a
// wrong password, so responses never reveal which part was wrong.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrWrongProvider means the account exists but was created through an
// OAuth provider and has no usable password.
var ErrWrongProvider = goerrors.New("account uses a different sign-in provider", goerrors.CategoryAuth).
	WithTextCode("WRONG_PROVIDER").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified blocks credential sign-in until the address is verified.
var ErrEmailNotVerified = goerrors.New("email address not verified", goerrors.CategoryAuth).
	WithTextCode("EMAIL_NOT_VERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the login attempt cool down window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode("TOO_MANY_ATTEMPTS")

// ErrSessionNotFound means no session row matches the presented identifier.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryAuth).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenInvalid covers both a hash mismatch and a superseded
// token presented after rotation. Both terminate the session: a mismatch
// on a live session token is indistinguishable from token theft.
var ErrRefreshTokenInvalid = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode("REFRESH_TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired means the redemption window closed; the session
// row is deleted as a side effect.
var ErrRefreshTokenExpired = goerrors.New("refresh token expired", goerrors.CategoryAuth).
	WithTextCode("REFRESH_TOKEN_EXPIRED").
	WithCode(goerrors.CodeForbidden)

// ErrVerificationTokenNotFound covers unknown and already consumed tokens.
var ErrVerificationTokenNotFound = goerrors.New("verification token not found", goerrors.CategoryValidation).
	WithTextCode("VERIFICATION_TOKEN_NOT_FOUND").
	WithCode(goerrors.CodeBadRequest)

// ErrVerificationTokenExpired is returned without mutating any state.
var ErrVerificationTokenExpired = goerrors.New("verification token expired", goerrors.CategoryValidation).
	WithTextCode("VERIFICATION_TOKEN_EXPIRED").
	WithCode(goerrors.CodeBadRequest)

// ErrEmailTaken and ErrUsernameTaken are the duplicate unique field conflicts.
var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeConflict)

var ErrUsernameTaken = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode("USERNAME_TAKEN").
	WithCode(goerrors.CodeConflict)

// ErrTokenExpired is returned for expired access tokens.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens we cannot parse or verify.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString guards hashing helpers
var ErrNoEmptyString = errors.New("value should not be an empty string")

// ErrUnableToFindSession is the error when our reequest has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// WrapStoreError marks a backend failure. Store errors are fatal for the
// request and never retried here; callers may retry at the transport level.
func WrapStoreError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode("STORE_UNAVAILABLE")
}

// IsStoreUnavailable reports whether err is a wrapped backend failure.
func IsStoreUnavailable(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == "STORE_UNAVAILABLE"
	}
	return false
}

// StatusForError maps the error taxonomy to an HTTP status. Anything
// uncategorized is a 500 so backend failures never leak details.
func StatusForError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.TextCode == "STORE_UNAVAILABLE" {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryAuth:
		if richErr.TextCode == "REFRESH_TOKEN_EXPIRED" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
