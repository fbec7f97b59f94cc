package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamal/authcore/internal/auth"
)

const testSecret = "unit-test-secret-0123456789"

// testClock lets a test move token time forward without sleeping.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, repo *fakeTokenRepo, opts TokenManagerOptions) (*TokenManager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Now().UTC()}
	codec, err := auth.NewCodecAt(testSecret, clock.Now)
	require.NoError(t, err)
	return NewTokenManager(codec, repo, discardLogger(), opts), clock
}

func TestTokenManagerIssuePair(t *testing.T) {
	repo := newFakeTokenRepo()
	rec := newCountingRecorder()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{Recorder: rec})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", pair.UserID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.IsActive)
	assert.Equal(t, 1, rec.pairs)

	access := mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeAccess)
	assert.Equal(t, auth.StatusValid, access.Status)
	assert.Equal(t, "user-1", access.UserID)

	refresh := mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusValid, refresh.Status)
	assert.Equal(t, "user-1", refresh.UserID)
}

func TestTokenManagerIssuePair_StoreError(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.issueErr = errors.New("disk full")
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})

	_, err := mgr.IssuePair(context.Background(), "user-1")
	require.Error(t, err)
}

func TestTokenManagerVerify_Expired(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, clock := newTestManager(t, repo, TokenManagerOptions{
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	res := mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeAccess)
	assert.Equal(t, auth.StatusExpired, res.Status, "access token past its TTL must report Expired")
	assert.Empty(t, res.UserID)

	// The refresh token outlives the access token.
	res = mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusValid, res.Status)

	clock.Advance(24 * time.Hour)
	res = mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusExpired, res.Status)
}

// Presenting a token of the wrong type is Invalid, not Expired or Valid:
// a refresh token must never pass an access check and vice versa.
func TestTokenManagerVerify_TypeMismatch(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	res := mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeAccess)
	assert.Equal(t, auth.StatusInvalid, res.Status)

	res = mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusInvalid, res.Status)
}

func TestTokenManagerVerify_Garbage(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		res := mgr.Verify(context.Background(), token, auth.TokenTypeAccess)
		assert.Equal(t, auth.StatusInvalid, res.Status, "token %q", token)
	}
}

// Issuing a new pair revokes the old refresh token even though the same
// user holds a newer active pair.
func TestTokenManagerVerify_SupersededRefresh(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})
	ctx := context.Background()

	old, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	// Issue the second pair at a later timestamp; identical claims
	// would otherwise encode to the identical token string.
	mgr2, c2 := newTestManager(t, repo, TokenManagerOptions{})
	c2.Advance(time.Second)
	fresh, err := mgr2.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	require.NotEqual(t, old.RefreshToken, fresh.RefreshToken)

	res := mgr.Verify(ctx, old.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusInvalid, res.Status, "superseded refresh token must be revoked")

	res = mgr.Verify(ctx, fresh.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusValid, res.Status)
}

func TestTokenManagerVerify_RevokedRefresh(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, mgr.RevokeAll(ctx, "user-1"))

	res := mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusInvalid, res.Status)

	// Access tokens are stateless and keep working until expiry.
	res = mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeAccess)
	assert.Equal(t, auth.StatusValid, res.Status)
}

// A store failure during the revocation check must fail closed.
func TestTokenManagerVerify_StoreErrorFailsClosed(t *testing.T) {
	repo := newFakeTokenRepo()
	mgr, _ := newTestManager(t, repo, TokenManagerOptions{})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	repo.lookupErr = errors.New("database gone")
	res := mgr.Verify(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
	assert.Equal(t, auth.StatusInvalid, res.Status)
}

func TestTokenManagerVerify_RecordsOutcome(t *testing.T) {
	repo := newFakeTokenRepo()
	rec := newCountingRecorder()
	mgr, clock := newTestManager(t, repo, TokenManagerOptions{Recorder: rec})
	ctx := context.Background()

	pair, err := mgr.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeAccess)
	mgr.Verify(ctx, "garbage", auth.TokenTypeAccess)
	clock.Advance(DefaultAccessTokenTTL + time.Minute)
	mgr.Verify(ctx, pair.AccessToken, auth.TokenTypeAccess)

	assert.Equal(t, 1, rec.verified[auth.StatusValid])
	assert.Equal(t, 1, rec.verified[auth.StatusInvalid])
	assert.Equal(t, 1, rec.verified[auth.StatusExpired])
}
