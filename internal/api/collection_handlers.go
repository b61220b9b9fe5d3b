package api

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vinylroom/vinylroom-server/internal/domain"
	domainerrors "github.com/vinylroom/vinylroom-server/internal/errors"
	"github.com/vinylroom/vinylroom-server/internal/service"
)

// Refreshes are expensive upstream, so each client gets one every ten
// seconds with a small burst.
const (
	refreshRPS   = 0.1
	refreshBurst = 2
)

// minSearchLength is the shortest query that triggers the search path;
// anything shorter is treated as no search at all.
const minSearchLength = 2

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-collection",
		Method:      http.MethodGet,
		Path:        "/api/collection",
		Summary:     "Browse collection",
		Description: "One page of the resolved collection, optionally filtered by a free-text query.",
		Tags:        []string{"Collection"},
	}, s.handleGetCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-collection",
		Method:      http.MethodGet,
		Path:        "/api/collection/search",
		Summary:     "Search collection",
		Description: "Free-text search over the whole collection scope.",
		Tags:        []string{"Collection"},
	}, s.handleSearchCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-collection-folders",
		Method:      http.MethodGet,
		Path:        "/api/collection/folders",
		Summary:     "List folders",
		Tags:        []string{"Collection"},
	}, s.handleGetFolders)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-collection",
		Method:      http.MethodPost,
		Path:        "/api/collection/refresh",
		Summary:     "Refresh collection cache",
		Description: "Drops the cached collection for a folder and refetches it from Discogs.",
		Tags:        []string{"Collection"},
	}, s.handleRefreshCollection)
}

// === DTOs ===

// CollectionInput holds the shared collection query parameters.
type CollectionInput struct {
	Mode    string `query:"mode" enum:"demo,user" default:"demo" doc:"Whose collection to browse"`
	Page    int    `query:"page" minimum:"1" default:"1" doc:"Page number"`
	PerPage int    `query:"perPage" minimum:"1" maximum:"100" default:"50" doc:"Releases per page"`
	Folder  int64  `query:"folder" minimum:"0" default:"0" doc:"Collection folder id (0 = all)"`
	Sort    string `query:"sort" enum:"added,artist,title,year" default:"added" doc:"Sort field"`
	Order   string `query:"order" enum:"asc,desc" default:"desc" doc:"Sort direction"`
	Search  string `query:"search" maxLength:"200" doc:"Optional free-text filter"`
}

// SearchCollectionInput adds the mandatory query parameter.
type SearchCollectionInput struct {
	CollectionInput
	Q string `query:"q" required:"true" minLength:"2" maxLength:"200" doc:"Search query"`
}

// CollectionOutput wraps the uniform collection response.
type CollectionOutput struct {
	Body service.CollectionResponse
}

// FoldersOutput lists the scope's folders.
type FoldersOutput struct {
	Body struct {
		Folders []domain.Folder `json:"folders"`
	}
}

// RefreshInput selects the folder to refresh.
type RefreshInput struct {
	Mode   string `query:"mode" enum:"demo,user" default:"demo" doc:"Whose collection to refresh"`
	Folder int64  `query:"folder" minimum:"0" default:"0" doc:"Collection folder id"`
}

// RefreshOutput reports what the refresh did.
type RefreshOutput struct {
	Body service.RefreshResult
}

// === Handlers ===

func (s *Server) handleGetCollection(ctx context.Context, input *CollectionInput) (*CollectionOutput, error) {
	req := s.collectionRequest(ctx, input)
	// Sub-minimum queries are browsing, not searching. Count runes so a
	// single multibyte character does not pass as two.
	if utf8.RuneCountInString(strings.TrimSpace(req.Query)) < minSearchLength {
		req.Query = ""
	}

	resp, err := s.services.Collection.GetCollection(ctx, req)
	if err != nil {
		s.logger.Error("collection request failed", "folder", input.Folder, "error", err)
		return nil, err
	}
	return &CollectionOutput{Body: *resp}, nil
}

func (s *Server) handleSearchCollection(ctx context.Context, input *SearchCollectionInput) (*CollectionOutput, error) {
	req := s.collectionRequest(ctx, &input.CollectionInput)
	req.Query = input.Q

	resp, err := s.services.Collection.GetCollection(ctx, req)
	if err != nil {
		s.logger.Error("collection search failed", "query", input.Q, "error", err)
		return nil, err
	}
	return &CollectionOutput{Body: *resp}, nil
}

func (s *Server) handleGetFolders(ctx context.Context, input *struct {
	Mode string `query:"mode" enum:"demo,user" default:"demo" doc:"Whose folders to list"`
},
) (*FoldersOutput, error) {
	folders, err := s.services.Collection.GetFolders(ctx, service.CollectionRequest{
		Mode:    domain.Mode(input.Mode),
		Session: SessionFromContext(ctx),
	})
	if err != nil {
		return nil, err
	}

	out := &FoldersOutput{}
	out.Body.Folders = folders
	return out, nil
}

func (s *Server) handleRefreshCollection(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
	if !s.refreshLimiter.Allow(clientIP(ctx)) {
		return nil, domainerrors.RateLimited("refresh requested too frequently, try again shortly")
	}

	result, err := s.services.Collection.RefreshCache(ctx, service.CollectionRequest{
		Mode:    domain.Mode(input.Mode),
		Session: SessionFromContext(ctx),
		Folder:  input.Folder,
	})
	if err != nil {
		s.logger.Error("cache refresh failed", "folder", input.Folder, "error", err)
		return nil, err
	}
	return &RefreshOutput{Body: *result}, nil
}

func (s *Server) collectionRequest(ctx context.Context, input *CollectionInput) service.CollectionRequest {
	return service.CollectionRequest{
		Mode:    domain.Mode(input.Mode),
		Session: SessionFromContext(ctx),
		Folder:  input.Folder,
		Page:    input.Page,
		PerPage: input.PerPage,
		Sort:    domain.ParseSortField(input.Sort),
		Order:   domain.ParseSortOrder(input.Order),
		Query:   input.Search,
	}
}
