package domain

import (
	"fmt"
	"net/url"
)

// PageURLs holds relative navigation links for a paginated response.
// A link is omitted when the target page does not exist.
type PageURLs struct {
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// Pagination describes one page of a paginated response.
type Pagination struct {
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
	PerPage int      `json:"per_page"`
	Items   int      `json:"items"`
	URLs    PageURLs `json:"urls"`
}

// NewPagination builds pagination metadata for totalItems split into
// perPage-sized pages. Navigation links are derived from basePath and
// query, with the page parameter rewritten per target. An empty result
// still reports one page, matching how Discogs paginates.
func NewPagination(page, perPage, totalItems int, basePath string, query url.Values) Pagination {
	pages := (totalItems + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}

	p := Pagination{
		Page:    page,
		Pages:   pages,
		PerPage: perPage,
		Items:   totalItems,
	}

	link := func(target int) string {
		q := url.Values{}
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("page", fmt.Sprintf("%d", target))
		return basePath + "?" + q.Encode()
	}

	if page > 1 {
		p.URLs.First = link(1)
		p.URLs.Prev = link(page - 1)
	}
	if page < pages {
		p.URLs.Next = link(page + 1)
		p.URLs.Last = link(pages)
	}
	return p
}

// PageBounds returns the half-open slice bounds [start, end) for the
// given page over n items. An out-of-range page yields an empty window.
func PageBounds(page, perPage, n int) (int, int) {
	start := (page - 1) * perPage
	if start < 0 || start >= n {
		return 0, 0
	}
	end := start + perPage
	if end > n {
		end = n
	}
	return start, end
}
