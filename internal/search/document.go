package search

import (
	"strconv"
	"strings"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// Document is the indexed form of one collection release. Text fields
// are normalized before indexing so queries match regardless of case or
// diacritics. The document ID is the release instance id, which is what
// search results hand back to the caller.
type Document struct {
	ID      string
	Title   string
	Artists string
	Label   string
	CatNo   string
	Genres  []string
	Styles  []string
}

// NewDocument builds an index document from a release.
func NewDocument(r *domain.Release) *Document {
	info := r.BasicInformation

	var labels, catnos []string
	for _, l := range info.Labels {
		if l.Name != "" {
			labels = append(labels, l.Name)
		}
		if l.CatNo != "" {
			catnos = append(catnos, l.CatNo)
		}
	}

	genres := make([]string, 0, len(info.Genres))
	for _, g := range info.Genres {
		genres = append(genres, Normalize(g))
	}
	styles := make([]string, 0, len(info.Styles))
	for _, s := range info.Styles {
		styles = append(styles, Normalize(s))
	}

	return &Document{
		ID:      strconv.FormatInt(r.InstanceID, 10),
		Title:   Normalize(info.Title),
		Artists: Normalize(r.JoinedArtists()),
		Label:   Normalize(strings.Join(labels, " ")),
		CatNo:   Normalize(strings.Join(catnos, " ")),
		Genres:  genres,
		Styles:  styles,
	}
}

// ToMap converts the document for indexing so field names match the
// mapping exactly.
func (d *Document) ToMap() map[string]any {
	return map[string]any{
		"title":   d.Title,
		"artists": d.Artists,
		"label":   d.Label,
		"catno":   d.CatNo,
		"genre":   d.Genres,
		"style":   d.Styles,
	}
}
