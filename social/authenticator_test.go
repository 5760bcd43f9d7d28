package social_test

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/goliatone/go-auth-sessions/social"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    user_role TEXT NOT NULL,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT,
    avatar_url TEXT,
    provider TEXT NOT NULL,
    password_hash TEXT,
    email_verified TIMESTAMP NULL,
    login_attempts INTEGER DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    loggedin_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
	`CREATE TABLE sessions (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    session_token TEXT NOT NULL UNIQUE,
    expires TIMESTAMP NOT NULL,
    refresh_token_hash TEXT NOT NULL,
    refresh_token_expires TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
	`CREATE TABLE verification_tokens (
    token TEXT NOT NULL PRIMARY KEY,
    identifier TEXT NOT NULL,
    expires TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
}

func setupRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	for _, ddl := range schema {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return auth.NewRepositoryManager(bunDB)
}

// fakeProvider satisfies social.SocialProvider without network calls.
type fakeProvider struct {
	name          string
	profile       *social.SocialProfile
	exchangeErr   error
	userInfoErr   error
	lastChallenge string
	lastVerifier  string
	lastCode      string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(nil, opts...)
	p.lastChallenge = cfg.CodeChallenge
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	cfg := social.ApplyExchangeOptions(opts...)
	p.lastVerifier = cfg.CodeVerifier
	p.lastCode = code
	return &social.Token{AccessToken: "provider-access-token"}, nil
}

func (p *fakeProvider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	return p.profile, nil
}

type stubIssuer struct {
	mu       sync.Mutex
	identity auth.Identity
}

func (s *stubIssuer) SessionFor(ctx context.Context, identity auth.Identity) (*auth.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	return &auth.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		SessionToken: "session-token",
	}, nil
}

type captureMailer struct {
	mu     sync.Mutex
	emails []string
	tokens []string
}

func (m *captureMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
	return nil
}

func githubProfile() *social.SocialProfile {
	return &social.SocialProfile{
		ProviderUserID: "12345",
		Provider:       "github",
		Email:          "octo@example.com",
		EmailVerified:  true,
		Username:       "octocat",
		Name:           "Octo Cat",
		AvatarURL:      "https://example.com/avatar.png",
	}
}

func testConfig() social.SocialAuthConfig {
	return social.SocialAuthConfig{
		BaseURL:            "http://localhost:8572",
		CallbackPath:       "/auth/social",
		StateEncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		StateHMACKey:       []byte("fedcba9876543210fedcba9876543210"),
		AllowSignup:        true,
	}
}

func newSocialAuth(t *testing.T, repo auth.RepositoryManager, provider *fakeProvider, cfg social.SocialAuthConfig, opts ...social.SocialAuthOption) (*social.SocialAuthenticator, *stubIssuer) {
	t.Helper()

	issuer := &stubIssuer{}
	opts = append([]social.SocialAuthOption{social.WithProvider(provider)}, opts...)

	return social.NewSocialAuthenticator(repo, issuer, cfg, opts...), issuer
}

func beginState(t *testing.T, sa *social.SocialAuthenticator, provider string) string {
	t.Helper()

	redirect, err := sa.BeginAuth(context.Background(), provider)
	require.NoError(t, err)
	return redirect.State
}

func TestBeginAuth(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	redirect, err := sa.BeginAuth(ctx, "github", social.WithRedirectURL("/dashboard"))
	require.NoError(t, err)

	assert.Equal(t, "github", redirect.Provider)
	assert.True(t, strings.HasPrefix(redirect.URL, "https://provider.example/authorize?state="))
	assert.NotEmpty(t, redirect.State)
	assert.NotEmpty(t, provider.lastChallenge)

	t.Run("state round trips through the manager", func(t *testing.T) {
		sm := social.NewEncryptedStateManager(
			testConfig().StateEncryptionKey,
			testConfig().StateHMACKey,
			10*time.Minute,
		)
		state, err := sm.Decode(redirect.State)
		require.NoError(t, err)
		assert.Equal(t, "github", state.Provider)
		assert.Equal(t, "/dashboard", state.RedirectURL)
		assert.NotEmpty(t, state.CodeVerifier)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := sa.BeginAuth(ctx, "gitlab")
		assert.ErrorIs(t, err, social.ErrProviderNotFound)
	})
}

func TestCompleteAuthCreatesUser(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, issuer := newSocialAuth(t, repo, provider, testConfig())

	state := beginState(t, sa, "github")

	result, err := sa.CompleteAuth(ctx, "github", "auth-code", state)
	require.NoError(t, err)

	assert.True(t, result.IsNewUser)
	assert.Equal(t, "github", result.Provider)
	assert.Equal(t, "access-token", result.Pair.AccessToken)
	assert.Equal(t, "auth-code", provider.lastCode)
	assert.NotEmpty(t, provider.lastVerifier)

	user, err := repo.Users().GetByIdentifier(ctx, "octo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, "github", user.Provider)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.True(t, user.IsVerified())
	assert.False(t, user.HasPassword())

	require.NotNil(t, issuer.identity)
	assert.Equal(t, user.ID.String(), issuer.identity.ID())
}

func TestCompleteAuthExistingUser(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	first, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.NoError(t, err)
	require.True(t, first.IsNewUser)

	second, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.NoError(t, err)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.User.ID(), second.User.ID())
}

func TestCompleteAuthProviderConflict(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	_, err = repo.Users().Register(ctx, &auth.User{
		Username:     "octocat",
		Email:        "octo@example.com",
		Provider:     auth.ProviderCredentials,
		PasswordHash: hash,
	})
	require.NoError(t, err)

	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	_, err = sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	assert.ErrorIs(t, err, social.ErrEmailAlreadyExists)
}

func TestCompleteAuthSignupDisabled(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	cfg := testConfig()
	cfg.AllowSignup = false

	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, cfg)

	_, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	assert.ErrorIs(t, err, social.ErrSignupNotAllowed)
}

func TestCompleteAuthMissingEmail(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	profile := githubProfile()
	profile.Email = ""

	provider := &fakeProvider{name: "github", profile: profile}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	_, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	assert.ErrorIs(t, err, social.ErrEmailMissing)
}

func TestCompleteAuthUnverifiedEmailIssuesToken(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	profile := githubProfile()
	profile.EmailVerified = false

	mailer := &captureMailer{}
	provider := &fakeProvider{name: "github", profile: profile}
	sa, _ := newSocialAuth(t, repo, provider, testConfig(), social.WithMailer(mailer))

	result, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)

	user, err := repo.Users().GetByIdentifier(ctx, "octo@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified())

	require.Len(t, mailer.emails, 1)
	assert.Equal(t, "octo@example.com", mailer.emails[0])
	require.Len(t, mailer.tokens, 1)

	stored, err := repo.VerificationTokens().GetByToken(ctx, mailer.tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", stored.Identifier)
}

func TestCompleteAuthVerifiedProfileUpgradesAccount(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	profile := githubProfile()
	profile.EmailVerified = false

	provider := &fakeProvider{name: "github", profile: profile}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	_, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.NoError(t, err)

	// The provider reports the email verified on a later sign in.
	provider.profile = githubProfile()

	_, err = sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.NoError(t, err)

	user, err := repo.Users().GetByIdentifier(ctx, "octo@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified())
}

func TestCompleteAuthStateValidation(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	t.Run("garbage state", func(t *testing.T) {
		_, err := sa.CompleteAuth(ctx, "github", "auth-code", "garbage-state")
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		state := beginState(t, sa, "github")
		_, err := sa.CompleteAuth(ctx, "google", "auth-code", state)
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		sm := social.NewEncryptedStateManager(
			testConfig().StateEncryptionKey,
			testConfig().StateHMACKey,
			10*time.Minute,
		)
		expired, err := sm.Encode(&social.OAuthState{
			Provider:  "github",
			IssuedAt:  time.Now().Add(-time.Hour).Unix(),
			ExpiresAt: time.Now().Add(-30 * time.Minute).Unix(),
		})
		require.NoError(t, err)

		_, err = sa.CompleteAuth(ctx, "github", "auth-code", expired)
		assert.ErrorIs(t, err, social.ErrStateExpired)
	})
}

func TestCompleteAuthExchangeFailure(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	provider := &fakeProvider{
		name:        "github",
		profile:     githubProfile(),
		exchangeErr: assert.AnError,
	}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	_, err := sa.CompleteAuth(ctx, "github", "auth-code", beginState(t, sa, "github"))
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, social.TextCodeTokenExchangeFail, richErr.TextCode)
}

func TestListProviders(t *testing.T) {
	repo := setupRepo(t)
	provider := &fakeProvider{name: "github", profile: githubProfile()}
	sa, _ := newSocialAuth(t, repo, provider, testConfig())

	providers := sa.ListProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, "github", providers[0].Name)
	assert.NotEmpty(t, providers[0].AuthURL)
}
