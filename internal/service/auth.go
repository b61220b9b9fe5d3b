package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/errors"
	"github.com/vinylroom/vinylroom-server/internal/search"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

// OAuthClient is the slice of the Discogs client the linking flow needs.
type OAuthClient interface {
	GetRequestToken(ctx context.Context, callbackURL string) (*discogs.RequestToken, error)
	GetAccessToken(ctx context.Context, token, secret, verifier string) (*discogs.AccessToken, error)
	GetIdentity(ctx context.Context, creds discogs.Credentials) (*domain.Identity, error)
}

// AuthService runs the three-legged OAuth flow linking a visitor's
// Discogs account and manages the resulting sessions.
type AuthService struct {
	client   OAuthClient
	sessions *session.Store
	// pending maps an outstanding request token to its secret while the
	// visitor is away approving it. Entries expire on their own if the
	// visitor never comes back.
	pending      *cache.Cache[string]
	releaseCache *cache.Cache[[]domain.Release]
	folderCache  *cache.Cache[[]domain.Folder]
	index        *search.Manager
	callbackURL  string
	logger       *slog.Logger
}

// NewAuthService creates the linking service. callbackURL is where
// Discogs redirects the visitor after approval.
func NewAuthService(
	client OAuthClient,
	sessions *session.Store,
	pending *cache.Cache[string],
	releaseCache *cache.Cache[[]domain.Release],
	folderCache *cache.Cache[[]domain.Folder],
	index *search.Manager,
	callbackURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		client:       client,
		sessions:     sessions,
		pending:      pending,
		releaseCache: releaseCache,
		folderCache:  folderCache,
		index:        index,
		callbackURL:  callbackURL,
		logger:       logger,
	}
}

// StartLink opens the OAuth flow and returns the URL the visitor must
// approve at.
func (s *AuthService) StartLink(ctx context.Context) (string, error) {
	rt, err := s.client.GetRequestToken(ctx, s.callbackURL)
	if err != nil {
		return "", translateErr(err)
	}
	s.pending.Set(rt.Token, rt.Secret)
	return rt.AuthorizeURL, nil
}

// CompleteLink finishes the flow once the visitor returns with an
// approved token and verifier, and mints a session for the linked
// account.
func (s *AuthService) CompleteLink(ctx context.Context, token, verifier string) (*domain.Session, error) {
	secret, ok := s.pending.Get(token)
	if !ok {
		return nil, errors.Validation("unknown or expired authorization request, start the linking flow again")
	}
	s.pending.Delete(token)

	at, err := s.client.GetAccessToken(ctx, token, secret, verifier)
	if err != nil {
		return nil, translateErr(err)
	}

	identity, err := s.client.GetIdentity(ctx, discogs.Credentials{
		AccessToken:  at.Token,
		AccessSecret: at.Secret,
	})
	if err != nil {
		return nil, translateErr(err)
	}

	sess := s.sessions.Create(identity.Username, at.Token, at.Secret)
	s.logger.Info("discogs account linked", "username", identity.Username)
	return sess, nil
}

// Resolve returns the live session for a session id, or nil.
func (s *AuthService) Resolve(sessionID string) *domain.Session {
	return s.sessions.Get(sessionID)
}

// Unlink ends a session and drops everything cached for its account.
func (s *AuthService) Unlink(sess *domain.Session) {
	if sess == nil {
		return
	}
	s.sessions.Delete(sess.ID)

	prefix := "discogs:user:" + sess.DiscogsUsername + ":"
	for _, key := range s.releaseCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.releaseCache.Delete(key)
			s.index.ClearIndex(key)
		}
	}
	for _, key := range s.folderCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.folderCache.Delete(key)
		}
	}
	s.logger.Info("discogs account unlinked", "username", sess.DiscogsUsername)
}
