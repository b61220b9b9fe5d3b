package domain

import "fmt"

// Mode identifies whose collection a request resolves to.
type Mode string

const (
	// ModeDemo serves the configured showcase account.
	ModeDemo Mode = "demo"
	// ModeUser serves the linked visitor's own account.
	ModeUser Mode = "user"
	// ModeUnlinked means no account is available at all.
	ModeUnlinked Mode = "unlinked"
	// ModeEmpty means the resolved account has no releases.
	ModeEmpty Mode = "empty"
)

// Scope names one materializable collection: an account plus a folder.
// It is the unit of caching and of search indexing.
type Scope struct {
	Mode     Mode
	UserID   string // Discogs username, empty in demo mode
	FolderID int64
}

// CacheKey returns the cache key for this scope's materialized releases.
func (s Scope) CacheKey() string {
	if s.Mode == ModeUser {
		return fmt.Sprintf("discogs:user:%s:collection:folder:%d", s.UserID, s.FolderID)
	}
	return fmt.Sprintf("discogs:demo:collection:folder:%d", s.FolderID)
}

// FoldersCacheKey returns the cache key for this scope's folder list.
// Folders are account-wide, the folder id plays no part.
func (s Scope) FoldersCacheKey() string {
	if s.Mode == ModeUser {
		return fmt.Sprintf("discogs:user:%s:folders", s.UserID)
	}
	return "discogs:demo:folders"
}

// IndexKey returns the search index key for this scope. One index is
// kept per materialized scope.
func (s Scope) IndexKey() string {
	return s.CacheKey()
}

// SortField selects the release attribute a listing is ordered by.
type SortField string

const (
	SortAdded  SortField = "added"
	SortArtist SortField = "artist"
	SortTitle  SortField = "title"
	SortYear   SortField = "year"
)

// ParseSortField maps a query value to a SortField, defaulting to added.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortArtist, SortTitle, SortYear:
		return SortField(s)
	default:
		return SortAdded
	}
}

// SortOrder is the listing direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder maps a query value to a SortOrder, defaulting to desc
// so the most recently added releases lead.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == OrderAsc {
		return OrderAsc
	}
	return OrderDesc
}
