package browse

import (
	"context"

	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/service"
)

// ServiceFetcher adapts the collection service to the Fetcher
// interface, carrying an optional linked session.
type ServiceFetcher struct {
	Service *service.CollectionService
	Session *domain.Session
}

// FetchPage loads one collection page under the given filters.
func (f *ServiceFetcher) FetchPage(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
	resp, err := f.Service.GetCollection(ctx, service.CollectionRequest{
		Mode:    filters.Mode,
		Session: f.Session,
		Folder:  filters.Folder,
		Page:    page,
		PerPage: perPage,
		Sort:    filters.Sort,
		Order:   filters.Order,
		Query:   filters.Query,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Releases: resp.Releases,
		Page:     resp.Pagination.Page,
		Pages:    resp.Pagination.Pages,
		Items:    resp.Pagination.Items,
	}, nil
}
