package itunes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func album(id int64, artist, title, releaseDate string, trackCount int) Album {
	return Album{
		WrapperType:    "collection",
		CollectionType: "Album",
		CollectionID:   id,
		ArtistName:     artist,
		CollectionName: title,
		ReleaseDate:    releaseDate,
		TrackCount:     trackCount,
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"björk", "bjork", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestFuzzyScore(t *testing.T) {
	assert.Equal(t, 1.0, fuzzyScore("abbey road", "abbey road"))

	contained := fuzzyScore("abbey road", "abbey")
	assert.GreaterOrEqual(t, contained, 0.85)
	assert.Less(t, contained, 1.0)

	assert.Less(t, fuzzyScore("abbey road", "kind of blue"), 0.5)
}

func TestScoreTitleIgnoresNoiseTokens(t *testing.T) {
	assert.Equal(t, 1.0, scoreTitle("Abbey Road", "Abbey Road (Deluxe Edition) [Remastered]"))
}

func TestScoreArtistStripsArticle(t *testing.T) {
	assert.Equal(t, 1.0, scoreArtist("The Beatles", "Beatles"))
	assert.Equal(t, 1.0, scoreArtist("Beatles", "the beatles"))
}

func TestScoreYear(t *testing.T) {
	tests := []struct {
		a, b int
		want float64
	}{
		{1969, 1969, 1.0},
		{1969, 1970, 0.7},
		{1969, 1971, 0.4},
		{1969, 1980, 0.0},
		{0, 1969, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoreYear(tt.a, tt.b))
	}
}

func TestScoreTrackCount(t *testing.T) {
	tests := []struct {
		a, b int
		want float64
	}{
		{12, 12, 1.0},
		{12, 13, 0.8},
		{12, 14, 0.6},
		{12, 16, 0.3},
		{12, 20, 0.0},
		{0, 12, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoreTrackCount(tt.a, tt.b))
	}
}

// fakeSearcher serves a fixed result set and counts calls.
type fakeSearcher struct {
	mu     sync.Mutex
	albums []Album
	calls  int
	err    error
}

func (f *fakeSearcher) SearchAlbums(context.Context, string, string, int) ([]Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.albums, nil
}

func TestFindMatch_HighConfidence(t *testing.T) {
	searcher := &fakeSearcher{albums: []Album{
		album(1, "The Beatles", "Abbey Road (2019 Remaster)", "1969-09-26T07:00:00Z", 17),
		album(2, "Various Artists", "Abbey Road Tribute", "2005-01-01T00:00:00Z", 14),
	}}
	m := NewMatcher(searcher, testLogger())

	result, err := m.FindMatch(context.Background(), MatchInput{
		Title:  "Abbey Road",
		Artist: "Beatles",
		Year:   1969,
	})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	require.NotNil(t, result.Result)
	assert.Equal(t, int64(1), result.Result.CollectionID)
	assert.GreaterOrEqual(t, result.Confidence, 0.75)
	assert.Empty(t, result.Candidates)
}

func TestFindMatch_AmbiguousReturnsCandidates(t *testing.T) {
	searcher := &fakeSearcher{albums: []Album{
		album(1, "Somebody Else", "Different Album", "1990-01-01T00:00:00Z", 9),
		album(2, "Another Band", "Unrelated Record", "1985-01-01T00:00:00Z", 11),
	}}
	m := NewMatcher(searcher, testLogger())

	result, err := m.FindMatch(context.Background(), MatchInput{
		Title:  "A Love Supreme",
		Artist: "John Coltrane",
		Year:   1965,
	})
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Nil(t, result.Result)
	assert.Len(t, result.Candidates, 2)
	assert.Less(t, result.Confidence, 0.75)
	// Candidates come back best first with their signal breakdown.
	assert.GreaterOrEqual(t, result.Candidates[0].Score, result.Candidates[1].Score)
	assert.NotZero(t, result.Candidates[0].Breakdown)
}

func TestFindMatch_NoResults(t *testing.T) {
	searcher := &fakeSearcher{}
	m := NewMatcher(searcher, testLogger())

	result, err := m.FindMatch(context.Background(), MatchInput{Title: "Obscurity", Artist: "Nobody"})
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Candidates)
}

func TestFindMatch_VerdictCached(t *testing.T) {
	searcher := &fakeSearcher{albums: []Album{
		album(1, "John Coltrane", "A Love Supreme", "1965-01-01T00:00:00Z", 4),
	}}
	m := NewMatcher(searcher, testLogger())

	input := MatchInput{Title: "A Love Supreme", Artist: "John Coltrane", Year: 1965}
	first, err := m.FindMatch(context.Background(), input)
	require.NoError(t, err)
	second, err := m.FindMatch(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, 1, searcher.calls, "second lookup must hit the cache")

	m.ClearCache()
	_, err = m.FindMatch(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls)
}

func TestReleaseYear(t *testing.T) {
	assert.Equal(t, 1969, releaseYear("1969-09-26T07:00:00Z"))
	assert.Equal(t, 0, releaseYear(""))
	assert.Equal(t, 0, releaseYear("soon"))
}

func TestSearchAlbums(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "music", r.URL.Query().Get("media"))
		assert.Equal(t, "album", r.URL.Query().Get("entity"))
		assert.Equal(t, "beatles abbey road", r.URL.Query().Get("term"))

		resp := searchResponse{
			ResultCount: 2,
			Results: []Album{
				album(1, "The Beatles", "Abbey Road", "1969-09-26T07:00:00Z", 17),
				{WrapperType: "track", ArtistName: "The Beatles", CollectionName: "Come Together"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	c := NewClient(testLogger())
	c.baseURL = server.URL

	albums, err := c.SearchAlbums(context.Background(), "Beatles", "Abbey Road", 10)
	require.NoError(t, err)
	require.Len(t, albums, 1, "track results are filtered out")
	assert.Equal(t, "Abbey Road", albums[0].CollectionName)
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup", r.URL.Path)
		assert.Equal(t, "401186200", r.URL.Query().Get("id"))
		resp := searchResponse{
			ResultCount: 1,
			Results:     []Album{album(401186200, "The Beatles", "Abbey Road", "1969-09-26T07:00:00Z", 17)},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	c := NewClient(testLogger())
	c.baseURL = server.URL

	got, err := c.Lookup(context.Background(), 401186200)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(401186200), got.CollectionID)

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(searchResponse{}))
	}))
	defer missing.Close()
	c.baseURL = missing.URL

	got, err = c.Lookup(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}
