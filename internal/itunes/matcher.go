package itunes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vinylroom/vinylroom-server/internal/cache"
)

const (
	// matchTTL bounds how long a match verdict is reused.
	matchTTL = 30 * time.Minute
	// searchLimit is how many iTunes results are scored per lookup.
	searchLimit = 20
)

// Weights distribute the match score across the four signals.
type Weights struct {
	Title      float64
	Artist     float64
	Year       float64
	TrackCount float64
}

// Config tunes the matcher.
type Config struct {
	// ConfidenceThreshold is the minimum score for an automatic match.
	ConfidenceThreshold float64
	// MaxCandidates caps the shortlist returned on ambiguous matches.
	MaxCandidates int
	Weights       Weights
}

// DefaultConfig weights the textual signals heaviest: titles and
// artists identify an album, year and track count only corroborate.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.75,
		MaxCandidates:       5,
		Weights: Weights{
			Title:      0.4,
			Artist:     0.35,
			Year:       0.15,
			TrackCount: 0.1,
		},
	}
}

// MatchInput identifies the release to match.
type MatchInput struct {
	Title      string
	Artist     string
	Year       int
	TrackCount int
}

// Breakdown reports the per-signal scores behind a candidate.
type Breakdown struct {
	Title      float64 `json:"titleScore"`
	Artist     float64 `json:"artistScore"`
	Year       float64 `json:"yearScore"`
	TrackCount float64 `json:"trackCountScore"`
}

// Candidate is one scored album.
type Candidate struct {
	Album     Album     `json:"album"`
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// MatchResult is the matcher's verdict: an automatic match above the
// confidence threshold, or a candidate shortlist below it.
type MatchResult struct {
	Matched    bool        `json:"matched"`
	Confidence float64     `json:"confidence"`
	Result     *Album      `json:"result,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Searcher is the slice of the iTunes client the matcher needs.
type Searcher interface {
	SearchAlbums(ctx context.Context, artist, album string, limit int) ([]Album, error)
}

// Matcher scores iTunes albums against a release using weighted title,
// artist, year and track-count signals, caching verdicts per release.
type Matcher struct {
	client Searcher
	cache  *cache.Cache[MatchResult]
	config Config
	logger *slog.Logger
}

// NewMatcher creates a matcher with the default configuration.
func NewMatcher(client Searcher, logger *slog.Logger) *Matcher {
	return NewMatcherWithConfig(client, DefaultConfig(), logger)
}

// NewMatcherWithConfig creates a matcher with a custom configuration.
func NewMatcherWithConfig(client Searcher, config Config, logger *slog.Logger) *Matcher {
	return &Matcher{
		client: client,
		cache:  cache.New[MatchResult](matchTTL),
		config: config,
		logger: logger,
	}
}

// FindMatch returns the best iTunes match for a release, or a shortlist
// of candidates when no single album clears the confidence threshold.
func (m *Matcher) FindMatch(ctx context.Context, input MatchInput) (*MatchResult, error) {
	key := matchKey(input)
	if cached, ok := m.cache.Get(key); ok {
		return &cached, nil
	}

	albums, err := m.client.SearchAlbums(ctx, input.Artist, input.Title, searchLimit)
	if err != nil {
		return nil, err
	}

	if len(albums) == 0 {
		result := MatchResult{Reason: "no results found on iTunes"}
		m.cache.Set(key, result)
		return &result, nil
	}

	candidates := m.score(input, albums)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	confidence := roundTo(best.Score, 3)

	var result MatchResult
	if confidence >= m.config.ConfidenceThreshold {
		result = MatchResult{
			Matched:    true,
			Confidence: confidence,
			Result:     &best.Album,
			Reason:     fmt.Sprintf("high confidence match (%.1f%%)", confidence*100),
		}
	} else {
		shortlist := candidates
		if len(shortlist) > m.config.MaxCandidates {
			shortlist = shortlist[:m.config.MaxCandidates]
		}
		result = MatchResult{
			Confidence: confidence,
			Candidates: shortlist,
			Reason:     fmt.Sprintf("ambiguous match, %d candidates (best %.1f%%)", len(candidates), confidence*100),
		}
	}

	m.logger.Debug("iTunes match",
		"artist", input.Artist,
		"title", input.Title,
		"matched", result.Matched,
		"confidence", confidence,
	)

	m.cache.Set(key, result)
	return &result, nil
}

// ClearCache drops all cached verdicts.
func (m *Matcher) ClearCache() {
	m.cache.Clear()
}

func (m *Matcher) score(input MatchInput, albums []Album) []Candidate {
	candidates := make([]Candidate, 0, len(albums))
	for _, album := range albums {
		breakdown := Breakdown{
			Title:      roundTo(scoreTitle(input.Title, album.CollectionName), 3),
			Artist:     roundTo(scoreArtist(input.Artist, album.ArtistName), 3),
			Year:       scoreYear(input.Year, releaseYear(album.ReleaseDate)),
			TrackCount: scoreTrackCount(input.TrackCount, album.TrackCount),
		}
		candidates = append(candidates, Candidate{
			Album:     album,
			Score:     weightedScore(breakdown, m.config.Weights),
			Breakdown: breakdown,
		})
	}
	return candidates
}

// releaseYear extracts the year from an iTunes release date such as
// "1969-09-26T07:00:00Z". Unparseable dates yield 0 (neutral).
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	t, err := time.Parse("2006", date[:4])
	if err != nil {
		return 0
	}
	return t.Year()
}

func matchKey(input MatchInput) string {
	key := fmt.Sprintf("itunes:match:%s:%s:%d", input.Artist, input.Title, input.Year)
	return strings.ReplaceAll(strings.ToLower(key), " ", "_")
}
