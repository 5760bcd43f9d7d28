package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// RefreshSecretBytes is the entropy of the random refresh secret.
const RefreshSecretBytes = 32

// SessionManager drives the session lifecycle: issue, refresh with
// rotation, revoke. Access validation is deliberately not here; the
// signed access artifact is checked statelessly by TokenService, which
// keeps the hot path free of store reads.
//
// Refresh expiry slides on every successful rotation. A client that keeps
// refreshing stays signed in; one that goes quiet for longer than the
// refresh TTL has to authenticate again.
type SessionManager struct {
	repo       RepositoryManager
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
	now        func() time.Time
}

type SessionManagerOption func(*SessionManager)

func WithSessionLogger(l Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager validates the TTL relationship up front: the access
// window must always close before the refresh window does.
func NewSessionManager(repo RepositoryManager, accessTTL, refreshTTL time.Duration, opts ...SessionManagerOption) (*SessionManager, error) {
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, goerrors.New("session TTLs must be positive", goerrors.CategoryBadInput)
	}

	if accessTTL >= refreshTTL {
		return nil, goerrors.New("access TTL must be shorter than refresh TTL", goerrors.CategoryBadInput)
	}

	m := &SessionManager{
		repo:       repo,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m, nil
}

// Issue creates one session row for the user and returns the plaintext
// refresh token exactly once. It is never retrievable again; only the
// secret's bcrypt hash is stored.
func (m *SessionManager) Issue(ctx context.Context, userID uuid.UUID) (*Session, string, error) {
	secret, err := newRefreshSecret()
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh secret")
	}

	hash, err := HashRefreshSecret(secret)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash refresh secret")
	}

	now := m.now()
	session := &Session{
		UserID:              userID,
		SessionToken:        uuid.NewString(),
		Expires:             now.Add(m.accessTTL),
		RefreshTokenHash:    hash,
		RefreshTokenExpires: now.Add(m.refreshTTL),
	}

	if _, err := m.repo.Sessions().Create(ctx, session); err != nil {
		return nil, "", WrapStoreError(err, "failed to persist session")
	}

	m.logger.Debug("issued session", "user_id", userID.String(), "session_token", session.SessionToken)

	return session, FormatRefreshToken(session.SessionToken, secret), nil
}

// Refresh redeems a refresh token and rotates the pair. The superseded
// token is dead the moment the conditional update lands: a concurrent
// attempt with the same token sees zero rows and fails as invalid.
//
// The failure-path deletes run as standalone statements on purpose. Were
// they issued inside a transaction that ends with the sentinel error, the
// rollback would resurrect the row and the expired or tampered session
// would stay redeemable.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*Session, string, error) {
	sid, secret, err := ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, "", err
	}

	session, err := m.repo.Sessions().GetBySessionToken(ctx, sid)
	if err != nil {
		if IsNoRows(err) {
			// A well formed token with no backing row was superseded by
			// rotation or revoked. The holder gets the same answer as a
			// forged token so text codes never reveal whether the session
			// identifier ever existed.
			return nil, "", ErrRefreshTokenInvalid
		}
		return nil, "", WrapStoreError(err, "failed to look up session")
	}

	now := m.now()
	if session.RefreshExpired(now) {
		if err := m.repo.Sessions().DeleteByID(ctx, session.ID); err != nil {
			return nil, "", WrapStoreError(err, "failed to delete expired session")
		}
		return nil, "", ErrRefreshTokenExpired
	}

	if err := CompareRefreshSecret(secret, session.RefreshTokenHash); err != nil {
		if goerrors.Is(err, ErrRefreshTokenInvalid) {
			// A wrong secret against a live session token smells like
			// theft. Terminate the session rather than letting the
			// holder keep probing.
			if err := m.repo.Sessions().DeleteByID(ctx, session.ID); err != nil {
				return nil, "", WrapStoreError(err, "failed to terminate tampered session")
			}
			m.logger.Warn("refresh secret mismatch, session terminated",
				"user_id", session.UserID.String(),
				"session_token", session.SessionToken,
			)
			return nil, "", ErrRefreshTokenInvalid
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare refresh secret")
	}

	newSecret, err := newRefreshSecret()
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh secret")
	}

	newHash, err := HashRefreshSecret(newSecret)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash refresh secret")
	}

	rotated := &Session{
		ID:                  session.ID,
		UserID:              session.UserID,
		SessionToken:        uuid.NewString(),
		Expires:             now.Add(m.accessTTL),
		RefreshTokenHash:    newHash,
		RefreshTokenExpires: now.Add(m.refreshTTL),
		CreatedAt:           session.CreatedAt,
	}

	rows, err := m.repo.Sessions().Rotate(ctx, rotated, sid)
	if err != nil {
		return nil, "", WrapStoreError(err, "failed to rotate session")
	}

	if rows == 0 {
		// Lost the race against a concurrent refresh; the presented
		// token generation is already superseded.
		return nil, "", ErrRefreshTokenInvalid
	}

	plaintext := FormatRefreshToken(rotated.SessionToken, newSecret)

	m.logger.Debug("rotated session",
		"user_id", rotated.UserID.String(),
		"session_token", rotated.SessionToken,
	)

	return rotated, plaintext, nil
}

// Revoke removes every session for the user. Safe to call when none
// exist; sign-out of an already signed-out user is a no-op.
func (m *SessionManager) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := m.repo.Sessions().DeleteByUser(ctx, userID); err != nil {
		return WrapStoreError(err, "failed to revoke sessions")
	}
	return nil
}

// RevokeSession removes a single session row, leaving the user's other
// device sessions alone.
func (m *SessionManager) RevokeSession(ctx context.Context, sessionToken string) error {
	session, err := m.repo.Sessions().GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if IsNoRows(err) {
			return nil
		}
		return WrapStoreError(err, "failed to look up session")
	}

	if err := m.repo.Sessions().DeleteByID(ctx, session.ID); err != nil {
		return WrapStoreError(err, "failed to delete session")
	}

	return nil
}

// AccessTTL exposes the configured access window.
func (m *SessionManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// RefreshTTL exposes the configured refresh window.
func (m *SessionManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// FormatRefreshToken builds the opaque string handed to clients. Packing
// the session token next to the secret lets the refresh endpoint accept a
// single value while the server still looks rows up by identifier and
// stores only the secret's hash.
func FormatRefreshToken(sessionToken, secret string) string {
	return sessionToken + "." + secret
}

// ParseRefreshToken splits a presented refresh token into the session
// identifier and the secret.
func ParseRefreshToken(token string) (string, string, error) {
	sid, secret, found := strings.Cut(token, ".")
	if !found || sid == "" || secret == "" {
		return "", "", ErrRefreshTokenInvalid
	}

	if _, err := uuid.Parse(sid); err != nil {
		return "", "", ErrRefreshTokenInvalid
	}

	return sid, secret, nil
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
