// Package service contains the application services: the collection
// orchestrator and the account linking flow.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/errors"
	"github.com/vinylroom/vinylroom-server/internal/search"
)

// DefaultPerPage is the page size used when the caller does not ask for
// one.
const DefaultPerPage = 50

// MaxPerPage caps the page size at the Discogs maximum.
const MaxPerPage = 100

// CollectionClient is the slice of the Discogs client the orchestrator
// needs.
type CollectionClient interface {
	GetFolders(ctx context.Context, creds discogs.Credentials, username string) ([]domain.Folder, error)
	GetCollectionPage(ctx context.Context, creds discogs.Credentials, username string, folderID int64, opts discogs.PageOptions) (*discogs.CollectionPage, error)
	GetAllReleases(ctx context.Context, creds discogs.Credentials, username string, folderID int64) ([]domain.Release, error)
}

// CollectionRequest carries one collection query.
type CollectionRequest struct {
	// Mode the caller asked for. ModeUser without a Session resolves to
	// unlinked.
	Mode    domain.Mode
	Session *domain.Session
	Folder  int64
	Page    int
	PerPage int
	Sort    domain.SortField
	Order   domain.SortOrder
	Query   string
}

// CollectionResponse is the uniform result shape every path produces.
type CollectionResponse struct {
	Mode            domain.Mode       `json:"mode"`
	DiscogsUsername string            `json:"discogsUsername,omitempty"`
	Releases        []domain.Release  `json:"releases"`
	Folders         []domain.Folder   `json:"folders"`
	Pagination      domain.Pagination `json:"pagination"`
	// TotalResults is the filtered match count, set on search queries.
	TotalResults int `json:"totalResults,omitempty"`
}

// RefreshResult reports what a cache refresh actually did.
type RefreshResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CacheCleared  bool   `json:"cacheCleared"`
	DataRefreshed bool   `json:"dataRefreshed"`
}

// flight is one in-progress full materialization shared by concurrent
// callers.
type flight struct {
	done     chan struct{}
	releases []domain.Release
	err      error
}

// CollectionService answers collection queries. It decides between a
// cheap single-page upstream fetch and a full materialization with
// local filtering, and keeps the cache and search index consistent.
type CollectionService struct {
	client       CollectionClient
	releaseCache *cache.Cache[[]domain.Release]
	folderCache  *cache.Cache[[]domain.Folder]
	index        *search.Manager
	logger       *slog.Logger

	demoUsername string
	demoToken    string

	mu      sync.Mutex
	pending map[string]*flight
}

// NewCollectionService creates the orchestrator. demoToken and
// demoUsername may be empty, which disables demo mode.
func NewCollectionService(
	client CollectionClient,
	releaseCache *cache.Cache[[]domain.Release],
	folderCache *cache.Cache[[]domain.Folder],
	index *search.Manager,
	demoUsername, demoToken string,
	logger *slog.Logger,
) *CollectionService {
	return &CollectionService{
		client:       client,
		releaseCache: releaseCache,
		folderCache:  folderCache,
		index:        index,
		logger:       logger,
		demoUsername: demoUsername,
		demoToken:    demoToken,
		pending:      make(map[string]*flight),
	}
}

// GetCollection returns one page of the resolved collection. Without a
// search query it costs a single upstream call; with one, the whole
// scope is materialized (once) and filtered locally.
func (s *CollectionService) GetCollection(ctx context.Context, req CollectionRequest) (*CollectionResponse, error) {
	req = withDefaults(req)

	scope, creds, username := s.resolve(req)
	if scope.Mode == domain.ModeUnlinked {
		return unlinkedResponse(req), nil
	}

	folders, err := s.getFolders(ctx, scope, creds, username)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Query) == "" {
		return s.directPage(ctx, req, scope, creds, username, folders)
	}
	return s.searchPage(ctx, req, scope, creds, username, folders)
}

// GetFolders returns the full folder listing for the resolved scope.
// Unlinked scopes get an empty list without an upstream call.
func (s *CollectionService) GetFolders(ctx context.Context, req CollectionRequest) ([]domain.Folder, error) {
	req = withDefaults(req)
	scope, creds, username := s.resolve(req)
	if scope.Mode == domain.ModeUnlinked {
		return []domain.Folder{}, nil
	}
	return s.getFolders(ctx, scope, creds, username)
}

// RefreshCache drops the cached releases and search index for a scope
// and immediately rematerializes them.
func (s *CollectionService) RefreshCache(ctx context.Context, req CollectionRequest) (*RefreshResult, error) {
	req = withDefaults(req)

	scope, creds, username := s.resolve(req)
	if scope.Mode == domain.ModeUnlinked {
		return &RefreshResult{
			Success: false,
			Message: "no account linked",
		}, nil
	}

	key := scope.CacheKey()
	cleared := s.releaseCache.Delete(key)
	s.index.ClearIndex(scope.IndexKey())
	s.folderCache.Delete(scope.FoldersCacheKey())

	releases, err := s.materialize(ctx, scope, creds, username)
	if err != nil {
		return &RefreshResult{
			Success:      false,
			Message:      fmt.Sprintf("refresh failed: %v", err),
			CacheCleared: cleared,
		}, translateErr(err)
	}

	s.logger.Info("collection cache refreshed",
		"scope", key,
		"releases", len(releases),
		"had_cache", cleared,
	)
	return &RefreshResult{
		Success:       true,
		Message:       fmt.Sprintf("refreshed %d releases", len(releases)),
		CacheCleared:  cleared,
		DataRefreshed: true,
	}, nil
}

// resolve maps a request to its effective scope, credentials, and
// upstream username.
func (s *CollectionService) resolve(req CollectionRequest) (domain.Scope, discogs.Credentials, string) {
	if req.Mode == domain.ModeUser {
		if req.Session == nil {
			return domain.Scope{Mode: domain.ModeUnlinked, FolderID: req.Folder}, discogs.Credentials{}, ""
		}
		scope := domain.Scope{
			Mode:     domain.ModeUser,
			UserID:   req.Session.DiscogsUsername,
			FolderID: req.Folder,
		}
		creds := discogs.Credentials{
			AccessToken:  req.Session.AccessToken,
			AccessSecret: req.Session.AccessSecret,
		}
		return scope, creds, req.Session.DiscogsUsername
	}

	if s.demoToken == "" || s.demoUsername == "" {
		return domain.Scope{Mode: domain.ModeUnlinked, FolderID: req.Folder}, discogs.Credentials{}, ""
	}
	scope := domain.Scope{Mode: domain.ModeDemo, FolderID: req.Folder}
	return scope, discogs.Credentials{Token: s.demoToken}, s.demoUsername
}

// directPage serves the fast path: exactly one upstream page, ordering
// delegated to Discogs.
func (s *CollectionService) directPage(ctx context.Context, req CollectionRequest, scope domain.Scope, creds discogs.Credentials, username string, folders []domain.Folder) (*CollectionResponse, error) {
	page, err := s.client.GetCollectionPage(ctx, creds, username, scope.FolderID, discogs.PageOptions{
		Page:    req.Page,
		PerPage: req.PerPage,
		Sort:    string(req.Sort),
		Order:   string(req.Order),
	})
	if err != nil {
		return nil, translateErr(err)
	}

	mode := scope.Mode
	if mode == domain.ModeUser && page.Pagination.Items == 0 {
		mode = domain.ModeEmpty
	}

	releases := page.Releases
	if releases == nil {
		releases = []domain.Release{}
	}
	return &CollectionResponse{
		Mode:            mode,
		DiscogsUsername: username,
		Releases:        releases,
		Folders:         folders,
		Pagination:      domain.NewPagination(page.Pagination.Page, page.Pagination.PerPage, page.Pagination.Items, "/api/collection", linkQuery(req)),
	}, nil
}

// searchPage serves the search path: materialize the whole scope, match
// locally, sort, then slice the requested window. Totals reflect the
// filtered set.
func (s *CollectionService) searchPage(ctx context.Context, req CollectionRequest, scope domain.Scope, creds discogs.Credentials, username string, folders []domain.Folder) (*CollectionResponse, error) {
	all, err := s.materialize(ctx, scope, creds, username)
	if err != nil {
		return nil, translateErr(err)
	}

	matched, err := s.filter(ctx, scope, all, req.Query)
	if err != nil {
		return nil, err
	}
	sortReleases(matched, req.Sort, req.Order)

	start, end := domain.PageBounds(req.Page, req.PerPage, len(matched))
	window := matched[start:end]
	if window == nil {
		window = []domain.Release{}
	}

	mode := scope.Mode
	if mode == domain.ModeUser && len(all) == 0 {
		mode = domain.ModeEmpty
	}

	return &CollectionResponse{
		Mode:            mode,
		DiscogsUsername: username,
		Releases:        window,
		Folders:         folders,
		Pagination:      domain.NewPagination(req.Page, req.PerPage, len(matched), "/api/collection", linkQuery(req)),
		TotalResults:    len(matched),
	}, nil
}

// materialize returns the full release set for a scope, fetching it at
// most once: concurrent callers for the same key share one in-flight
// fetch.
func (s *CollectionService) materialize(ctx context.Context, scope domain.Scope, creds discogs.Credentials, username string) ([]domain.Release, error) {
	key := scope.CacheKey()
	if cached, ok := s.releaseCache.Get(key); ok {
		return cached, nil
	}

	s.mu.Lock()
	if f, ok := s.pending[key]; ok {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
			return f.releases, f.err
		}
	}
	f := &flight{done: make(chan struct{})}
	s.pending[key] = f
	s.mu.Unlock()

	// The flight is shared, so it must outlive its initiator: a caller
	// that gives up must not cancel the fetch out from under waiters
	// that are still interested.
	f.releases, f.err = s.fetchAndIndex(context.WithoutCancel(ctx), scope, creds, username)

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
	close(f.done)

	return f.releases, f.err
}

func (s *CollectionService) fetchAndIndex(ctx context.Context, scope domain.Scope, creds discogs.Credentials, username string) ([]domain.Release, error) {
	releases, err := s.client.GetAllReleases(ctx, creds, username, scope.FolderID)
	if err != nil {
		return nil, err
	}

	s.releaseCache.Set(scope.CacheKey(), releases)
	if err := s.index.BuildIndex(scope.IndexKey(), releases); err != nil {
		// The cache entry is still good, search just degrades to
		// substring matching.
		s.logger.Error("failed to build search index", "scope", scope.CacheKey(), "error", err)
	}
	return releases, nil
}

// filter returns the releases matching query: the union of normalized
// substring matches across artist, title, genre, and style, and the
// fuzzy/prefix hits from the search index. Collection order is kept;
// the caller sorts.
func (s *CollectionService) filter(ctx context.Context, scope domain.Scope, releases []domain.Release, query string) ([]domain.Release, error) {
	needle := search.Normalize(query)
	if needle == "" {
		return nil, nil
	}

	ids, err := s.index.Search(ctx, scope.IndexKey(), query)
	if err != nil {
		return nil, errors.Internal("search failed").WithCause(err)
	}
	hitSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		hitSet[id] = struct{}{}
	}

	var matched []domain.Release
	for i := range releases {
		r := &releases[i]
		if _, hit := hitSet[r.InstanceID]; hit || matchesSubstring(r, needle) {
			matched = append(matched, *r)
		}
	}
	return matched, nil
}

// matchesSubstring reports whether any searchable field of r contains
// the normalized needle.
func matchesSubstring(r *domain.Release, needle string) bool {
	if strings.Contains(search.Normalize(r.BasicInformation.Title), needle) {
		return true
	}
	for _, a := range r.BasicInformation.Artists {
		if strings.Contains(search.Normalize(a.Name), needle) {
			return true
		}
	}
	for _, g := range r.BasicInformation.Genres {
		if strings.Contains(search.Normalize(g), needle) {
			return true
		}
	}
	for _, st := range r.BasicInformation.Styles {
		if strings.Contains(search.Normalize(st), needle) {
			return true
		}
	}
	return false
}

// sortReleases orders releases in place by field and direction. Artist
// ordering is locale-aware and case-insensitive; title ordering runs
// over the normalized title; a missing year sorts as 0. The sort is
// stable so equal keys keep collection order.
func sortReleases(releases []domain.Release, field domain.SortField, order domain.SortOrder) {
	sign := 1
	if order == domain.OrderDesc {
		sign = -1
	}

	// Collators buffer internally and are not safe to share, so build
	// one per sort.
	col := collate.New(language.Und, collate.Loose)

	sort.SliceStable(releases, func(i, j int) bool {
		a, b := &releases[i], &releases[j]
		var cmp int
		switch field {
		case domain.SortArtist:
			cmp = col.CompareString(a.PrimaryArtist(), b.PrimaryArtist())
		case domain.SortTitle:
			cmp = strings.Compare(search.Normalize(a.BasicInformation.Title), search.Normalize(b.BasicInformation.Title))
		case domain.SortYear:
			cmp = compareInt(a.SortYear(), b.SortYear())
		default:
			cmp = a.DateAdded.Compare(b.DateAdded)
		}
		return sign*cmp < 0
	})
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// getFolders returns the full folder listing for a scope, cached with
// the same TTL as releases.
func (s *CollectionService) getFolders(ctx context.Context, scope domain.Scope, creds discogs.Credentials, username string) ([]domain.Folder, error) {
	key := scope.FoldersCacheKey()
	if cached, ok := s.folderCache.Get(key); ok {
		return cached, nil
	}

	folders, err := s.client.GetFolders(ctx, creds, username)
	if err != nil {
		return nil, translateErr(err)
	}
	if folders == nil {
		folders = []domain.Folder{}
	}
	s.folderCache.Set(key, folders)
	return folders, nil
}

func withDefaults(req CollectionRequest) CollectionRequest {
	if req.Mode == "" {
		req.Mode = domain.ModeDemo
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = DefaultPerPage
	}
	if req.PerPage > MaxPerPage {
		req.PerPage = MaxPerPage
	}
	if req.Sort == "" {
		req.Sort = domain.SortAdded
	}
	if req.Order == "" {
		req.Order = domain.OrderDesc
	}
	return req
}

func unlinkedResponse(req CollectionRequest) *CollectionResponse {
	return &CollectionResponse{
		Mode:       domain.ModeUnlinked,
		Releases:   []domain.Release{},
		Folders:    []domain.Folder{},
		Pagination: domain.NewPagination(1, req.PerPage, 0, "/api/collection", nil),
	}
}

// linkQuery builds the query string echoed into pagination links,
// omitting parameters at their defaults.
func linkQuery(req CollectionRequest) url.Values {
	q := url.Values{}
	if req.Mode == domain.ModeUser {
		q.Set("mode", "user")
	}
	if req.Folder != 0 {
		q.Set("folder", strconv.FormatInt(req.Folder, 10))
	}
	if req.Sort != domain.SortAdded {
		q.Set("sort", string(req.Sort))
	}
	if req.Order != domain.OrderDesc {
		q.Set("order", string(req.Order))
	}
	if req.PerPage != DefaultPerPage {
		q.Set("perPage", strconv.Itoa(req.PerPage))
	}
	if strings.TrimSpace(req.Query) != "" {
		q.Set("search", req.Query)
	}
	return q
}

// translateErr maps client sentinels to domain errors at the service
// boundary.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, discogs.ErrRateLimited):
		return errors.RateLimited("upstream rate limit reached, try again shortly").WithCause(err)
	case stderrors.Is(err, discogs.ErrUnauthorized):
		return errors.Unauthorized("discogs rejected the credentials").WithCause(err)
	case stderrors.Is(err, discogs.ErrForbidden):
		return errors.Forbidden("discogs denied access to this collection").WithCause(err)
	case stderrors.Is(err, discogs.ErrNotFound):
		return errors.NotFound("collection").WithCause(err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Upstream("discogs request failed").WithCause(err)
	}
}
