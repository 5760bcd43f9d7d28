package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is bcrypt's 72 byte input limit. Anything longer
// must be rejected at validation time, GenerateFromPassword errors on it.
const MaxPasswordLength = 72

// PasswordHashCost is the bcrypt cost for stored credentials. Hashing is
// intentionally expensive; callers should treat it as a blocking call.
var PasswordHashCost = 14

// RefreshHashCost is the bcrypt cost for refresh token secrets. The
// secrets already carry 256 bits of entropy, so a lighter cost keeps the
// refresh path fast without weakening the hash's purpose.
var RefreshHashCost = 10

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// HashRefreshSecret hashes the random half of a refresh token before it
// is persisted. The plaintext secret is never stored.
func HashRefreshSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), RefreshHashCost)
	return string(h), err
}

// CompareRefreshSecret validates a presented refresh secret against the
// stored hash using bcrypt's constant-time comparison.
func CompareRefreshSecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrRefreshTokenInvalid
		}
		return err
	}
	return nil
}
