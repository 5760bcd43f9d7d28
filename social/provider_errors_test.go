package social

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{"nil receiver", nil, "provider error"},
		{"description wins", &ProviderError{Provider: "github", Operation: "exchange", Code: "bad_code", Description: "expired"}, "github exchange failed: expired"},
		{"code fallback", &ProviderError{Provider: "github", Code: "bad_verification_code"}, "github failed: bad_verification_code"},
		{"wrapped error fallback", &ProviderError{Operation: "userinfo", Err: errors.New("boom")}, "userinfo failed: boom"},
		{"bare", &ProviderError{}, "provider failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestWrapProviderError(t *testing.T) {
	inner := &ProviderError{
		Provider:  "github",
		Operation: "exchange",
		Status:    401,
		Code:      "bad_verification_code",
	}

	wrapped := wrapProviderError(ErrTokenExchangeFailed, "github", "exchange", inner)

	var rich *goerrors.Error
	require.ErrorAs(t, wrapped, &rich)
	assert.Equal(t, TextCodeTokenExchangeFail, rich.TextCode)
	assert.Equal(t, "github", rich.Metadata["provider"])
	assert.Equal(t, 401, rich.Metadata["status"])

	t.Run("sentinel is not mutated", func(t *testing.T) {
		assert.Empty(t, ErrTokenExchangeFailed.Metadata)
	})

	t.Run("original error stays reachable", func(t *testing.T) {
		var perr *ProviderError
		assert.ErrorAs(t, wrapped, &perr)
	})

	t.Run("nil base passes the error through", func(t *testing.T) {
		err := errors.New("plain")
		assert.Equal(t, err, wrapProviderError(nil, "github", "exchange", err))
	})
}
