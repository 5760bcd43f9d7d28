package auth

import (
	"context"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther ties credential verification, the session lifecycle, and the
// signed access artifact together. It is the single entry point the HTTP
// layer talks to for login, refresh, and logout.
type Auther struct {
	provider       IdentityProvider
	sessions       *SessionManager
	signingKey     []byte
	issuer         string
	audience       []string
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, sessions *SessionManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		sessions:     sessions,
		signingKey:   []byte(opts.GetSigningKey()),
		issuer:       opts.GetIssuer(),
		audience:     opts.GetAudience(),
		logger:       defLogger{},
		tokenService: tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Sessions returns the session lifecycle manager backing this Authenticator.
func (s *Auther) Sessions() *SessionManager {
	return s.sessions
}

// Login verifies credentials and issues a fresh session. The returned
// pair carries the only plaintext copy of the refresh token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrIdentityNotFound
	}

	return s.SessionFor(ctx, identity)
}

// SessionFor issues a session and access artifact for an already verified
// identity. Social login lands here after the provider callback resolved
// the account; credential login goes through Login first.
func (s *Auther) SessionFor(ctx context.Context, identity Identity) (*TokenPair, error) {
	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		s.logger.Error("SessionFor identity has malformed id", "id", identity.ID())
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity carries a malformed user id")
	}

	session, refreshToken, err := s.sessions.Issue(ctx, userID)
	if err != nil {
		s.logger.Error("SessionFor failed to issue session", "error", err)
		return nil, err
	}

	accessToken, err := s.tokenService.Generate(identity, session.SessionToken, session.Expires)
	if err != nil {
		s.logger.Error("SessionFor failed to sign access token", "error", err)
		return nil, err
	}

	return &TokenPair{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		SessionToken:   session.SessionToken,
		AccessExpires:  session.Expires,
		RefreshExpires: session.RefreshTokenExpires,
	}, nil
}

// Refresh redeems a refresh token, rotates the session, and signs a new
// access artifact against the rotated row.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	session, rotatedRefresh, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.UserID.String())
	if err != nil {
		s.logger.Error("Refresh identity lookup failed", "error", err)
		return nil, err
	}

	accessToken, err := s.tokenService.Generate(identity, session.SessionToken, session.Expires)
	if err != nil {
		s.logger.Error("Refresh failed to sign access token", "error", err)
		return nil, err
	}

	return &TokenPair{
		AccessToken:    accessToken,
		RefreshToken:   rotatedRefresh,
		SessionToken:   session.SessionToken,
		AccessExpires:  session.Expires,
		RefreshExpires: session.RefreshTokenExpires,
	}, nil
}

// Logout revokes every session the user holds. Already signed-out users
// get a success, not an error.
func (s *Auther) Logout(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return goerrors.New("malformed user id", goerrors.CategoryBadInput).
			WithTextCode("INVALID_USER_ID")
	}

	return s.sessions.Revoke(ctx, uid)
}

// SessionFromToken validates a raw access token and returns its claims.
// This is the read-only path: no store access happens here.
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	return claims, nil
}

// IdentityFromClaims resolves the identity behind validated claims.
func (s *Auther) IdentityFromClaims(ctx context.Context, claims AuthClaims) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.UserID())
	if err != nil {
		s.logger.Error("IdentityFromClaims find identity by identifier", "error", err)
		return nil, err
	}

	return identity, nil
}
