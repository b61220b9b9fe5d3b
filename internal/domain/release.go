// Package domain defines the core types of the Vinylroom collection browser.
package domain

import (
	"strings"
	"time"
)

// Artist is a credited artist on a release.
type Artist struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ANV         string `json:"anv,omitempty"`
	Join        string `json:"join,omitempty"`
	Role        string `json:"role,omitempty"`
	ResourceURL string `json:"resource_url,omitempty"`
}

// Label is a record label credit with its catalog number.
type Label struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CatNo       string `json:"catno,omitempty"`
	EntityType  string `json:"entity_type,omitempty"`
	ResourceURL string `json:"resource_url,omitempty"`
}

// Format describes the physical format of a release.
type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty,omitempty"`
	Text         string   `json:"text,omitempty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

// BasicInformation is the release metadata Discogs embeds in every
// collection item.
type BasicInformation struct {
	ID          int64    `json:"id"`
	MasterID    int64    `json:"master_id,omitempty"`
	MasterURL   string   `json:"master_url,omitempty"`
	ResourceURL string   `json:"resource_url,omitempty"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Thumb       string   `json:"thumb,omitempty"`
	CoverImage  string   `json:"cover_image,omitempty"`
	Artists     []Artist `json:"artists,omitempty"`
	Labels      []Label  `json:"labels,omitempty"`
	Formats     []Format `json:"formats,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Styles      []string `json:"styles,omitempty"`
}

// Release is one item in a collection folder. InstanceID identifies the
// physical copy, so the same release may appear more than once.
type Release struct {
	ID               int64            `json:"id"`
	InstanceID       int64            `json:"instance_id"`
	FolderID         int64            `json:"folder_id"`
	Rating           int              `json:"rating"`
	DateAdded        time.Time        `json:"date_added"`
	BasicInformation BasicInformation `json:"basic_information"`
}

// PrimaryArtist returns the first credited artist's name, or "" when the
// release carries no artist credit.
func (r *Release) PrimaryArtist() string {
	if len(r.BasicInformation.Artists) == 0 {
		return ""
	}
	return r.BasicInformation.Artists[0].Name
}

// ArtistNames returns all credited artist names in credit order.
func (r *Release) ArtistNames() []string {
	names := make([]string, 0, len(r.BasicInformation.Artists))
	for _, a := range r.BasicInformation.Artists {
		names = append(names, a.Name)
	}
	return names
}

// JoinedArtists returns the artist credits joined for display and matching.
func (r *Release) JoinedArtists() string {
	return strings.Join(r.ArtistNames(), ", ")
}

// SortYear returns the release year for ordering. Discogs reports a
// missing year as 0 and this keeps it that way, so unknown years group
// together at one end of the ordering.
func (r *Release) SortYear() int {
	if r.BasicInformation.Year < 1000 || r.BasicInformation.Year > 9999 {
		return 0
	}
	return r.BasicInformation.Year
}

// Folder is a Discogs collection folder. Folder 0 is the virtual "All"
// folder and folder 1 is "Uncategorized".
type Folder struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Count       int    `json:"count"`
	ResourceURL string `json:"resource_url,omitempty"`
}
