package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newSessionManager(t *testing.T, repo auth.RepositoryManager, clock *fakeClock) *auth.SessionManager {
	t.Helper()

	manager, err := auth.NewSessionManager(
		repo,
		15*time.Minute,
		24*time.Hour,
		auth.WithClock(clock.Now),
	)
	require.NoError(t, err)

	return manager
}

func TestNewSessionManagerValidatesTTLs(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := auth.NewSessionManager(repo, 0, time.Hour)
	assert.Error(t, err)

	_, err = auth.NewSessionManager(repo, time.Hour, time.Minute)
	assert.Error(t, err)
}

func TestSessionIssue(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	session, refreshToken, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, session)

	sid, secret, err := auth.ParseRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.SessionToken, sid)

	stored, err := repo.Sessions().GetBySessionToken(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.NotEqual(t, secret, stored.RefreshTokenHash)
	assert.NoError(t, auth.CompareRefreshSecret(secret, stored.RefreshTokenHash))
}

func TestSessionRefreshRotates(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	session, refreshToken, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	rotated, rotatedToken, err := manager.Refresh(ctx, refreshToken)
	require.NoError(t, err)

	assert.Equal(t, session.ID, rotated.ID)
	assert.NotEqual(t, session.SessionToken, rotated.SessionToken)
	assert.NotEqual(t, refreshToken, rotatedToken)

	t.Run("refresh expiry slides forward", func(t *testing.T) {
		assert.Equal(t, clock.Now().Add(manager.RefreshTTL()).Unix(), rotated.RefreshTokenExpires.Unix())
		assert.True(t, rotated.RefreshTokenExpires.After(session.RefreshTokenExpires))
	})

	t.Run("superseded token no longer redeems", func(t *testing.T) {
		_, _, err := manager.Refresh(ctx, refreshToken)
		assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)
	})

	t.Run("rotated token redeems", func(t *testing.T) {
		_, _, err := manager.Refresh(ctx, rotatedToken)
		assert.NoError(t, err)
	})
}

func TestSessionRefreshExpiredDeletesRow(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	session, refreshToken, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)

	clock.Advance(manager.RefreshTTL() + time.Minute)

	_, _, err = manager.Refresh(ctx, refreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenExpired)

	_, err = repo.Sessions().GetBySessionToken(ctx, session.SessionToken)
	assert.True(t, auth.IsNoRows(err))
}

func TestSessionRefreshSecretMismatchTerminatesSession(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	session, _, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)

	forged := auth.FormatRefreshToken(session.SessionToken, "deadbeefdeadbeef")

	_, _, err = manager.Refresh(ctx, forged)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)

	_, err = repo.Sessions().GetBySessionToken(ctx, session.SessionToken)
	assert.True(t, auth.IsNoRows(err))
}

func TestSessionRevoke(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	_, _, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)
	_, _, err = manager.Issue(ctx, user.ID)
	require.NoError(t, err)

	records, err := repo.Sessions().FindByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, manager.Revoke(ctx, user.ID))

	records, err = repo.Sessions().FindByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	t.Run("revoking again is a no-op", func(t *testing.T) {
		assert.NoError(t, manager.Revoke(ctx, user.ID))
	})
}

func TestRevokeSessionLeavesOtherDevices(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	clock := &fakeClock{now: time.Now()}
	manager := newSessionManager(t, repo, clock)

	user := mustCreateUser(t, repo, nil)

	first, _, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)
	second, _, err := manager.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, manager.RevokeSession(ctx, first.SessionToken))

	_, err = repo.Sessions().GetBySessionToken(ctx, first.SessionToken)
	assert.True(t, auth.IsNoRows(err))

	_, err = repo.Sessions().GetBySessionToken(ctx, second.SessionToken)
	assert.NoError(t, err)

	t.Run("unknown session token is a no-op", func(t *testing.T) {
		assert.NoError(t, manager.RevokeSession(ctx, uuid.NewString()))
	})
}

func TestParseRefreshToken(t *testing.T) {
	sid := uuid.NewString()

	t.Run("round trip", func(t *testing.T) {
		gotSid, gotSecret, err := auth.ParseRefreshToken(auth.FormatRefreshToken(sid, "secret-part"))
		require.NoError(t, err)
		assert.Equal(t, sid, gotSid)
		assert.Equal(t, "secret-part", gotSecret)
	})

	for _, malformed := range []string{"", "no-separator", sid + ".", "." + "secret", "not-a-uuid.secret"} {
		t.Run("rejects "+malformed, func(t *testing.T) {
			_, _, err := auth.ParseRefreshToken(malformed)
			assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)
		})
	}
}
