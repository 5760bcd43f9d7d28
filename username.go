package auth

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxUsernameLength matches the registration payload constraint.
const MaxUsernameLength = 30

// usernameAttempts bounds the suffix probe before falling back to a
// random suffix, so a pathological namespace cannot loop forever.
const usernameAttempts = 50

// NormalizeUsername reduces a display name or email local part to a
// username candidate: lowercase, alphanumerics plus dots, dashes and
// underscores, trimmed to the length limit.
func NormalizeUsername(source string) string {
	if at := strings.IndexByte(source, '@'); at > 0 {
		source = source[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(source)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}

	out := strings.Trim(b.String(), ".-_")
	if len(out) > MaxUsernameLength {
		out = out[:MaxUsernameLength]
	}

	if out == "" {
		out = "user"
	}

	return out
}

// UniqueUsernameTx derives a unique username from source, resolving
// collisions with a numeric suffix: jane, jane1, jane2, ...
func UniqueUsernameTx(ctx context.Context, tx bun.IDB, users Users, source string) (string, error) {
	base := NormalizeUsername(source)

	candidate := base
	for i := 0; i < usernameAttempts; i++ {
		if i > 0 {
			suffix := strconv.Itoa(i)
			trimmed := base
			if len(trimmed)+len(suffix) > MaxUsernameLength {
				trimmed = trimmed[:MaxUsernameLength-len(suffix)]
			}
			candidate = trimmed + suffix
		}

		taken, err := users.UsernameExistsTx(ctx, tx, candidate)
		if err != nil {
			return "", WrapStoreError(err, "failed to check username uniqueness")
		}

		if !taken {
			return candidate, nil
		}
	}

	// Every probed suffix is taken; salt with randomness instead.
	suffix := strings.Split(uuid.NewString(), "-")[0]
	trimmed := base
	if len(trimmed)+len(suffix) > MaxUsernameLength {
		trimmed = trimmed[:MaxUsernameLength-len(suffix)]
	}

	candidate = trimmed + suffix
	taken, err := users.UsernameExistsTx(ctx, tx, candidate)
	if err != nil {
		return "", WrapStoreError(err, "failed to check username uniqueness")
	}
	if taken {
		return "", goerrors.New("unable to derive a unique username", goerrors.CategoryInternal)
	}

	return candidate, nil
}
