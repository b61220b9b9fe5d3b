package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/errors"
	"github.com/vinylroom/vinylroom-server/internal/search"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

type fakeOAuthClient struct {
	requestCalls int
	accessCalls  int
	identity     domain.Identity
}

func (f *fakeOAuthClient) GetRequestToken(_ context.Context, callbackURL string) (*discogs.RequestToken, error) {
	f.requestCalls++
	return &discogs.RequestToken{
		Token:        "req-token",
		Secret:       "req-secret",
		AuthorizeURL: "https://www.discogs.com/oauth/authorize?oauth_token=req-token",
	}, nil
}

func (f *fakeOAuthClient) GetAccessToken(_ context.Context, token, secret, verifier string) (*discogs.AccessToken, error) {
	f.accessCalls++
	if token != "req-token" || secret != "req-secret" || verifier != "verifier-1" {
		return nil, discogs.ErrUnauthorized
	}
	return &discogs.AccessToken{Token: "acc-token", Secret: "acc-secret"}, nil
}

func (f *fakeOAuthClient) GetIdentity(context.Context, discogs.Credentials) (*domain.Identity, error) {
	return &f.identity, nil
}

type authFixture struct {
	svc          *AuthService
	client       *fakeOAuthClient
	sessions     *session.Store
	releaseCache *cache.Cache[[]domain.Release]
	folderCache  *cache.Cache[[]domain.Folder]
	index        *search.Manager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &authFixture{
		client:       &fakeOAuthClient{identity: domain.Identity{ID: 42, Username: "rust.in.peace"}},
		sessions:     session.NewStore(time.Hour),
		releaseCache: cache.New[[]domain.Release](time.Minute),
		folderCache:  cache.New[[]domain.Folder](time.Minute),
		index:        search.NewManager(logger),
	}
	f.svc = NewAuthService(
		f.client, f.sessions, cache.New[string](time.Minute),
		f.releaseCache, f.folderCache, f.index,
		"http://localhost:8080/api/auth/discogs/callback", logger,
	)
	return f
}

func TestLinkFlow(t *testing.T) {
	f := newAuthFixture(t)

	authorizeURL, err := f.svc.StartLink(context.Background())
	require.NoError(t, err)
	assert.Contains(t, authorizeURL, "oauth_token=req-token")

	sess, err := f.svc.CompleteLink(context.Background(), "req-token", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "rust.in.peace", sess.DiscogsUsername)
	assert.Equal(t, "acc-token", sess.AccessToken)
	assert.Equal(t, "acc-secret", sess.AccessSecret)

	assert.NotNil(t, f.svc.Resolve(sess.ID))
}

func TestCompleteLink_UnknownToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.CompleteLink(context.Background(), "never-issued", "v")
	var domainErr *errors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, errors.CodeValidation, domainErr.Code)
	assert.Zero(t, f.client.accessCalls, "no upstream exchange for unknown tokens")
}

func TestCompleteLink_TokenIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.StartLink(context.Background())
	require.NoError(t, err)
	_, err = f.svc.CompleteLink(context.Background(), "req-token", "verifier-1")
	require.NoError(t, err)

	_, err = f.svc.CompleteLink(context.Background(), "req-token", "verifier-1")
	assert.Error(t, err, "a consumed request token cannot be replayed")
}

func TestUnlink_DropsAccountState(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.StartLink(context.Background())
	require.NoError(t, err)
	sess, err := f.svc.CompleteLink(context.Background(), "req-token", "verifier-1")
	require.NoError(t, err)

	scope := domain.Scope{Mode: domain.ModeUser, UserID: sess.DiscogsUsername, FolderID: 0}
	f.releaseCache.Set(scope.CacheKey(), []domain.Release{{InstanceID: 1}})
	f.folderCache.Set(scope.FoldersCacheKey(), []domain.Folder{{ID: 0, Name: "All"}})
	require.NoError(t, f.index.BuildIndex(scope.IndexKey(), []domain.Release{{InstanceID: 1}}))

	// A different account's cache must survive.
	other := domain.Scope{Mode: domain.ModeDemo, FolderID: 0}
	f.releaseCache.Set(other.CacheKey(), []domain.Release{{InstanceID: 2}})

	f.svc.Unlink(sess)

	assert.Nil(t, f.svc.Resolve(sess.ID))
	assert.False(t, f.releaseCache.Has(scope.CacheKey()))
	assert.False(t, f.folderCache.Has(scope.FoldersCacheKey()))
	assert.False(t, f.index.HasIndex(scope.IndexKey()))
	assert.True(t, f.releaseCache.Has(other.CacheKey()), "demo cache is untouched")
}
