package browse

import (
	"net/url"
	"strconv"
	"sync"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// URLState is the browsing state that round-trips through the address
// bar. Defaults are omitted when encoding so clean states produce
// clean URLs.
type URLState struct {
	Filters Filters
	Page    int
}

// EncodeQuery renders the state as query parameters, omitting default
// values.
func EncodeQuery(st URLState) url.Values {
	values := url.Values{}
	if st.Filters.Mode == domain.ModeUser {
		values.Set("mode", string(st.Filters.Mode))
	}
	if st.Filters.Folder != 0 {
		values.Set("folder", strconv.FormatInt(st.Filters.Folder, 10))
	}
	if st.Filters.Sort != "" && st.Filters.Sort != domain.SortAdded {
		values.Set("sort", string(st.Filters.Sort))
	}
	if st.Filters.Order != "" && st.Filters.Order != domain.OrderDesc {
		values.Set("order", string(st.Filters.Order))
	}
	if st.Filters.Query != "" {
		values.Set("search", st.Filters.Query)
	}
	if st.Page > 1 {
		values.Set("page", strconv.Itoa(st.Page))
	}
	return values
}

// DecodeQuery parses query parameters back into browsing state,
// falling back to defaults for anything absent or malformed.
func DecodeQuery(values url.Values) URLState {
	st := URLState{
		Filters: Filters{
			Mode:  domain.ModeDemo,
			Sort:  domain.ParseSortField(values.Get("sort")),
			Order: domain.ParseSortOrder(values.Get("order")),
			Query: values.Get("search"),
		},
		Page: 1,
	}
	if values.Get("mode") == string(domain.ModeUser) {
		st.Filters.Mode = domain.ModeUser
	}
	if folder, err := strconv.ParseInt(values.Get("folder"), 10, 64); err == nil && folder > 0 {
		st.Filters.Folder = folder
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 1 {
		st.Page = page
	}
	return st
}

// URLSync keeps the address bar as a one-directional mirror of
// browsing state: state changes write the URL, and navigation events
// caused by those writes are suppressed so they do not echo back into
// state.
type URLSync struct {
	mu         sync.Mutex
	suppressed int
}

// Write encodes the state for the address bar and marks the resulting
// navigation event as self-inflicted.
func (s *URLSync) Write(st URLState) url.Values {
	s.mu.Lock()
	s.suppressed++
	s.mu.Unlock()
	return EncodeQuery(st)
}

// HandleNavigation decodes a navigation event. It reports false for
// events produced by this instance's own writes; only external
// navigation (back, forward, pasted link) should flow into state.
func (s *URLSync) HandleNavigation(values url.Values) (URLState, bool) {
	s.mu.Lock()
	if s.suppressed > 0 {
		s.suppressed--
		s.mu.Unlock()
		return URLState{}, false
	}
	s.mu.Unlock()
	return DecodeQuery(values), true
}
