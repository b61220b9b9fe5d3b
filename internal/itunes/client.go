// Package itunes matches collection releases against the iTunes Search
// API so releases can link out to Apple Music.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/vinylroom/vinylroom-server/internal/search"
)

const (
	defaultBaseURL = "https://itunes.apple.com"
	defaultLimit   = 10
)

// Album is one collection result from the iTunes Search API.
type Album struct {
	WrapperType       string `json:"wrapperType"`
	CollectionType    string `json:"collectionType"`
	ArtistID          int64  `json:"artistId"`
	CollectionID      int64  `json:"collectionId"`
	ArtistName        string `json:"artistName"`
	CollectionName    string `json:"collectionName"`
	ArtistViewURL     string `json:"artistViewUrl,omitempty"`
	CollectionViewURL string `json:"collectionViewUrl,omitempty"`
	ArtworkURL100     string `json:"artworkUrl100,omitempty"`
	TrackCount        int    `json:"trackCount"`
	Country           string `json:"country,omitempty"`
	ReleaseDate       string `json:"releaseDate,omitempty"`
	PrimaryGenreName  string `json:"primaryGenreName,omitempty"`
}

type searchResponse struct {
	ResultCount int     `json:"resultCount"`
	Results     []Album `json:"results"`
}

// Client provides access to the iTunes Search API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	baseURL     string
}

// NewClient creates a new iTunes client.
// Rate limited to 20 requests per minute as recommended by Apple.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// 20 requests per minute = 1 request per 3 seconds, burst of 5
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
		logger:      logger,
		baseURL:     defaultBaseURL,
	}
}

// SearchAlbums searches for albums by artist and title. Only collection
// results are returned; iTunes mixes songs and artists into the same
// result list.
func (c *Client) SearchAlbums(ctx context.Context, artist, album string, limit int) ([]Album, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{}
	params.Set("term", search.Normalize(artist+" "+album))
	params.Set("media", "music")
	params.Set("entity", "album")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("country", "US")

	resp, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("iTunes search results",
		"artist", artist,
		"album", album,
		"count", resp.ResultCount,
	)

	albums := make([]Album, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.WrapperType != "collection" {
			continue
		}
		albums = append(albums, r)
	}
	return albums, nil
}

// Lookup fetches one album by its iTunes collection id. A missing id
// returns nil without error.
func (c *Client) Lookup(ctx context.Context, collectionID int64) (*Album, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(collectionID, 10))
	params.Set("entity", "album")

	resp, err := c.get(ctx, "/lookup", params)
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Results {
		if r.WrapperType == "collection" {
			return &r, nil
		}
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*searchResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &parsed, nil
}
