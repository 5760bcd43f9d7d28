package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/go-auth-sessions/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	tokenHandler  http.HandlerFunc
	userHandler   http.HandlerFunc
	emailsHandler http.HandlerFunc
}

func (s stubAPI) start(t *testing.T) *Provider {
	t.Helper()

	mux := http.NewServeMux()
	if s.tokenHandler != nil {
		mux.HandleFunc("/login/oauth/access_token", s.tokenHandler)
	}
	if s.userHandler != nil {
		mux.HandleFunc("/user", s.userHandler)
	}
	if s.emailsHandler != nil {
		mux.HandleFunc("/user/emails", s.emailsHandler)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://example.com/callback",
		TokenURL:     server.URL + "/login/oauth/access_token",
		UserURL:      server.URL + "/user",
		EmailsURL:    server.URL + "/user/emails",
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/callback",
	})

	parsed, err := url.Parse(provider.AuthCodeURL("state-token",
		social.WithScopes("repo"),
		social.WithPKCE("challenge", "S256"),
	))
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "challenge", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "repo", q.Get("scope"))

	t.Run("default scopes when none given", func(t *testing.T) {
		parsed, err := url.Parse(provider.AuthCodeURL("state-token"))
		require.NoError(t, err)
		scope := parsed.Query().Get("scope")
		assert.Contains(t, scope, "user:email")
		assert.Contains(t, scope, "read:user")
	})
}

func TestExchange(t *testing.T) {
	var gotForm url.Values

	provider := stubAPI{
		tokenHandler: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			gotForm, err = url.ParseQuery(string(body))
			require.NoError(t, err)

			writeJSON(t, w, http.StatusOK, map[string]any{
				"access_token": "gho_token",
				"token_type":   "bearer",
				"scope":        "user:email,read:user",
			})
		},
	}.start(t)

	token, err := provider.Exchange(context.Background(), "auth-code", social.WithCodeVerifier("verifier"))
	require.NoError(t, err)

	assert.Equal(t, "gho_token", token.AccessToken)
	assert.Equal(t, []string{"user:email", "read:user"}, token.Scopes)

	assert.Equal(t, "client-id", gotForm.Get("client_id"))
	assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "verifier", gotForm.Get("code_verifier"))
}

func TestExchangeErrorsAreNormalized(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		payload  map[string]any
		wantCode string
	}{
		{
			// GitHub reports OAuth failures with a 200 and an error body.
			name:     "error body under 200",
			status:   http.StatusOK,
			payload:  map[string]any{"error": "bad_verification_code", "error_description": "bad code"},
			wantCode: "bad_verification_code",
		},
		{
			name:     "non-200 status",
			status:   http.StatusBadRequest,
			payload:  map[string]any{"error": "incorrect_client_credentials"},
			wantCode: "incorrect_client_credentials",
		},
		{
			name:     "empty token payload",
			status:   http.StatusOK,
			payload:  map[string]any{},
			wantCode: "missing_access_token",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := stubAPI{
				tokenHandler: func(w http.ResponseWriter, r *http.Request) {
					writeJSON(t, w, tc.status, tc.payload)
				},
			}.start(t)

			_, err := provider.Exchange(context.Background(), "code")
			require.Error(t, err)

			var perr *social.ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "github", perr.Provider)
			assert.Equal(t, "exchange", perr.Operation)
			assert.Equal(t, tc.status, perr.Status)
			assert.Equal(t, tc.wantCode, perr.Code)
		})
	}
}

func TestUserInfo(t *testing.T) {
	account := map[string]any{
		"id":         int64(1234),
		"login":      "octo",
		"name":       "Octo Cat",
		"email":      "",
		"avatar_url": "https://example.com/avatar.png",
		"html_url":   "https://github.com/octo",
	}

	t.Run("primary email wins", func(t *testing.T) {
		provider := stubAPI{
			userHandler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer gho_token", r.Header.Get("Authorization"))
				writeJSON(t, w, http.StatusOK, account)
			},
			emailsHandler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, []map[string]any{
					{"email": "old@example.com", "primary": false, "verified": true},
					{"email": "octo@example.com", "primary": true, "verified": true},
				})
			},
		}.start(t)

		profile, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "gho_token"})
		require.NoError(t, err)

		assert.Equal(t, "1234", profile.ProviderUserID)
		assert.Equal(t, "github", profile.Provider)
		assert.Equal(t, "octo", profile.Username)
		assert.Equal(t, "octo@example.com", profile.Email)
		assert.True(t, profile.EmailVerified)
	})

	t.Run("verified address without a primary", func(t *testing.T) {
		provider := stubAPI{
			userHandler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, account)
			},
			emailsHandler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, []map[string]any{
					{"email": "ignored@example.com", "primary": false, "verified": false},
					{"email": "backup@example.com", "primary": false, "verified": true},
				})
			},
		}.start(t)

		profile, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "gho_token"})
		require.NoError(t, err)
		assert.Equal(t, "backup@example.com", profile.Email)
		assert.True(t, profile.EmailVerified)
	})

	t.Run("emails endpoint failure falls back to the account email", func(t *testing.T) {
		withEmail := map[string]any{}
		for k, v := range account {
			withEmail[k] = v
		}
		withEmail["email"] = "public@example.com"

		provider := stubAPI{
			userHandler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, withEmail)
			},
			emailsHandler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusForbidden, map[string]any{"message": "scope missing"})
			},
		}.start(t)

		profile, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "gho_token"})
		require.NoError(t, err)
		assert.Equal(t, "public@example.com", profile.Email)
		assert.False(t, profile.EmailVerified)
	})
}

func TestParseScopeList(t *testing.T) {
	assert.Nil(t, parseScopeList(""))
	assert.Equal(t, []string{"user:email", "read:user"}, parseScopeList("user:email, read:user,"))
}
