package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-sessions"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SessionIssuer mints a session backed token pair for an already resolved
// identity. Satisfied by the root authenticator.
type SessionIssuer interface {
	SessionFor(ctx context.Context, identity auth.Identity) (*auth.TokenPair, error)
}

// SocialAuthenticator orchestrates OAuth login: redirect, callback,
// user resolution, and session issuance.
type SocialAuthenticator struct {
	providers    map[string]SocialProvider
	stateManager StateManager
	repo         auth.RepositoryManager
	verification *auth.VerificationFlow
	issuer       SessionIssuer
	mailer       auth.Mailer
	logger       auth.Logger
	config       SocialAuthConfig
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	BaseURL            string
	CallbackPath       string
	DefaultRedirectURL string
	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration
	AllowSignup        bool
	DefaultRole        string
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(
	repo auth.RepositoryManager,
	issuer SessionIssuer,
	config SocialAuthConfig,
	opts ...SocialAuthOption,
) *SocialAuthenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = auth.RoleUser
	}

	sa := &SocialAuthenticator{
		providers: make(map[string]SocialProvider),
		repo:      repo,
		issuer:    issuer,
		logger:    auth.DefaultLogger(),
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil {
		sa.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
		)
	}

	if sa.verification == nil {
		sa.verification = auth.NewVerificationFlow(repo)
	}

	if sa.mailer == nil {
		sa.mailer = auth.NewLogMailer(cfg.BaseURL, sa.logger)
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

// WithVerification sets the verification flow used for unverified
// provider emails.
func WithVerification(f *auth.VerificationFlow) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.verification = f
	}
}

// WithMailer sets the mail sink for verification links.
func WithMailer(m auth.Mailer) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if m != nil {
			sa.mailer = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if l != nil {
			sa.logger = l
		}
	}
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(
	ctx context.Context,
	providerName string,
	opts ...BeginAuthOption,
) (*AuthRedirect, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	cfg := &beginAuthConfig{
		redirectURL: sa.config.DefaultRedirectURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := computeCodeChallenge(codeVerifier)

	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
		IssuedAt:     time.Now().Unix(),
		ExpiresAt:    time.Now().Add(sa.config.StateTTL).Unix(),
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback: it validates the
// state, exchanges the code, resolves or creates the local user, and
// issues a session token pair.
func (sa *SocialAuthenticator) CompleteAuth(
	ctx context.Context,
	providerName string,
	code string,
	stateToken string,
) (*AuthResult, error) {
	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	if profile == nil || profile.Email == "" {
		return nil, ErrEmailMissing
	}

	user, isNew, pendingToken, err := sa.resolveUser(ctx, providerName, profile)
	if err != nil {
		return nil, err
	}

	// A freshly created account with an unverified provider email gets the
	// same emailed link as a credential signup.
	if pendingToken != nil {
		if err := sa.mailer.SendVerificationEmail(ctx, user.Email, pendingToken.Token); err != nil {
			sa.logger.Error("failed to send verification email", "email", user.Email, "error", err)
		}
	}

	identity := auth.NewIdentityFromUser(user)
	if identity == nil {
		return nil, auth.ErrIdentityNotFound
	}

	pair, err := sa.issuer.SessionFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	sa.logger.Info("social login",
		"provider", providerName,
		"user_id", identity.ID(),
		"new_user", isNew,
	)

	return &AuthResult{
		User:        identity,
		Pair:        pair,
		IsNewUser:   isNew,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// resolveUser maps the provider profile onto a local account inside one
// transaction. An email owned by a different provider is a conflict, not
// an implicit link.
func (sa *SocialAuthenticator) resolveUser(
	ctx context.Context,
	providerName string,
	profile *SocialProfile,
) (*auth.User, bool, *auth.VerificationToken, error) {
	var (
		user    *auth.User
		isNew   bool
		pending *auth.VerificationToken
	)

	err := sa.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := sa.repo.Users().GetByIdentifierTx(ctx, tx, profile.Email)
		if err == nil {
			if existing.Provider != providerName {
				return ErrEmailAlreadyExists
			}

			if profile.EmailVerified && !existing.IsVerified() {
				now := time.Now()
				if err := sa.repo.Users().MarkEmailVerifiedTx(ctx, tx, existing.Email, now); err != nil {
					return auth.WrapStoreError(err, "failed to mark email verified")
				}
				existing.MarkVerified(now)
			}

			user = existing
			return nil
		}

		if !goerrors.IsNotFound(err) {
			return auth.WrapStoreError(err, "failed to look up user by email")
		}

		if !sa.config.AllowSignup {
			return ErrSignupNotAllowed
		}

		source := profile.Username
		if source == "" {
			source = profile.Name
		}
		if source == "" {
			source = profile.Email
		}

		username, err := auth.UniqueUsernameTx(ctx, tx, sa.repo.Users(), source)
		if err != nil {
			return err
		}

		record := &auth.User{
			Email:       profile.Email,
			Username:    username,
			DisplayName: profile.Name,
			AvatarURL:   profile.AvatarURL,
			Provider:    providerName,
			Role:        sa.config.DefaultRole,
		}
		if id, err := hashid.NewUUID(profile.Email); err == nil {
			record.ID = id
		}

		if profile.EmailVerified {
			now := time.Now()
			record.EmailVerified = &now
		}

		if user, err = sa.repo.Users().RegisterTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if !profile.EmailVerified {
			if pending, err = sa.verification.IssueTx(ctx, tx, user.Email); err != nil {
				return err
			}
		}

		isNew = true
		return nil
	})
	if err != nil {
		return nil, false, nil, err
	}

	return user, isNew, pending, nil
}

// ListProviders returns all registered providers.
func (sa *SocialAuthenticator) ListProviders() []ProviderInfo {
	var providers []ProviderInfo
	for name, p := range sa.providers {
		providers = append(providers, ProviderInfo{
			Name:    name,
			AuthURL: p.AuthCodeURL(""),
		})
	}
	return providers
}

// ProviderInfo describes an available provider.
type ProviderInfo struct {
	Name    string
	AuthURL string
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	User        auth.Identity
	Pair        *auth.TokenPair
	IsNewUser   bool
	Provider    string
	Profile     *SocialProfile
	RedirectURL string
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		c.redirectURL = url
	}
}
