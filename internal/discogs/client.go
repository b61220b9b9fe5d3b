// Package discogs is an HTTP client for the Discogs REST API, covering
// the collection endpoints and the OAuth 1.0a linking flow.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

const (
	defaultBaseURL      = "https://api.discogs.com"
	defaultAuthorizeURL = "https://www.discogs.com/oauth/authorize"

	// Discogs allows 60 authenticated requests per minute.
	defaultTimeout   = 15 * time.Second
	defaultPageDelay = 250 * time.Millisecond

	maxRetries        = 3
	initialRetryDelay = time.Second

	// Cooldown after an explicit 429, and a shorter preventive one when
	// the remaining-requests header runs low.
	rateLimitCooldown  = 30 * time.Second
	preventiveCooldown = 10 * time.Second
	lowRemaining       = 2

	// Page size used during full materialization, the Discogs maximum.
	materializePerPage = 100
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	AuthorizeURL   string
	ConsumerKey    string
	ConsumerSecret string
	UserAgent      string
	Timeout        time.Duration
	PageDelay      time.Duration
}

type cooldown struct {
	until time.Time
	// hard cooldowns reject requests outright, soft ones just delay them.
	hard bool
}

// Client is a retrying Discogs API client. It is safe for concurrent use
// and keeps per-credential rate-limit cooldowns.
type Client struct {
	http             *http.Client
	logger           *slog.Logger
	consumerKey      string
	consumerSecret   string
	userAgent        string
	baseURL          string
	authorizeBaseURL string
	pageDelay        time.Duration

	mu        sync.Mutex
	cooldowns map[string]cooldown

	// Injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Discogs client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.AuthorizeURL == "" {
		opts.AuthorizeURL = defaultAuthorizeURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = defaultPageDelay
	}
	return &Client{
		http:             &http.Client{Timeout: opts.Timeout},
		logger:           logger,
		consumerKey:      opts.ConsumerKey,
		consumerSecret:   opts.ConsumerSecret,
		userAgent:        opts.UserAgent,
		baseURL:          opts.BaseURL,
		authorizeBaseURL: opts.AuthorizeURL,
		pageDelay:        opts.PageDelay,
		cooldowns:        make(map[string]cooldown),
		now:              time.Now,
		sleep:            sleepCtx,
	}
}

// GetIdentity returns the account the credentials authenticate as.
func (c *Client) GetIdentity(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	body, err := c.doRequest(ctx, "/oauth/identity", nil, creds)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}
	return &identity, nil
}

// GetFolders returns all collection folders of username.
func (c *Client) GetFolders(ctx context.Context, creds Credentials, username string) ([]domain.Folder, error) {
	path := fmt.Sprintf("/users/%s/collection/folders", url.PathEscape(username))
	body, err := c.doRequest(ctx, path, nil, creds)
	if err != nil {
		return nil, fmt.Errorf("get folders: %w", err)
	}

	var resp struct {
		Folders []domain.Folder `json:"folders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse folders: %w", err)
	}
	return resp.Folders, nil
}

// PageInfo is the pagination block Discogs returns on listing endpoints.
type PageInfo struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// CollectionPage is one page of a collection folder listing.
type CollectionPage struct {
	Pagination PageInfo         `json:"pagination"`
	Releases   []domain.Release `json:"releases"`
}

// PageOptions selects the page and upstream ordering of a listing call.
type PageOptions struct {
	Page    int
	PerPage int
	Sort    string // added, artist, title, year
	Order   string // asc, desc
}

// GetCollectionPage fetches a single page of a collection folder.
func (c *Client) GetCollectionPage(ctx context.Context, creds Credentials, username string, folderID int64, opts PageOptions) (*CollectionPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = materializePerPage
	}

	query := url.Values{
		"page":     {strconv.Itoa(opts.Page)},
		"per_page": {strconv.Itoa(opts.PerPage)},
	}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	if opts.Order != "" {
		query.Set("sort_order", opts.Order)
	}

	path := fmt.Sprintf("/users/%s/collection/folders/%d/releases", url.PathEscape(username), folderID)
	body, err := c.doRequest(ctx, path, query, creds)
	if err != nil {
		return nil, fmt.Errorf("get collection page %d: %w", opts.Page, err)
	}

	var page CollectionPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse collection page: %w", err)
	}
	return &page, nil
}

// GetAllReleases fetches every release of a folder by walking all pages
// sequentially, pacing requests to stay inside the Discogs budget. A
// page that keeps failing on a transient error is skipped with a warning
// so one bad page does not sink the whole materialization; credential
// and rate-limit failures abort immediately.
func (c *Client) GetAllReleases(ctx context.Context, creds Credentials, username string, folderID int64) ([]domain.Release, error) {
	first, err := c.GetCollectionPage(ctx, creds, username, folderID, PageOptions{Page: 1, PerPage: materializePerPage})
	if err != nil {
		return nil, err
	}

	releases := make([]domain.Release, 0, first.Pagination.Items)
	releases = append(releases, first.Releases...)

	for page := 2; page <= first.Pagination.Pages; page++ {
		if err := c.sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}

		p, err := c.GetCollectionPage(ctx, creds, username, folderID, PageOptions{Page: page, PerPage: materializePerPage})
		if err != nil {
			if !retryable(err) {
				return nil, err
			}
			c.logger.Warn("skipping collection page after repeated failures",
				"username", username,
				"folder", folderID,
				"page", page,
				"error", err,
			)
			continue
		}
		releases = append(releases, p.Releases...)
	}

	c.logger.Debug("collection materialized",
		"username", username,
		"folder", folderID,
		"releases", len(releases),
		"pages", first.Pagination.Pages,
	)
	return releases, nil
}

// doRequest executes a GET against the API with retries. Transient
// failures back off starting at one second and doubling per attempt.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, creds Credentials) ([]byte, error) {
	if err := c.checkCooldown(ctx, creds.Key()); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr error
	delay := initialRetryDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		body, err := c.attempt(ctx, fullURL, creds)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		c.logger.Debug("discogs request failed, retrying",
			"path", path,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// attempt performs one request. Auth headers are rebuilt per attempt so
// every OAuth signature carries a fresh nonce and timestamp.
func (c *Client) attempt(ctx context.Context, fullURL string, creds Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	auth, err := c.authHeader(http.MethodGet, fullURL, creds)
	if err != nil {
		return nil, err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		c.noteRemaining(resp, creds.Key())
		return body, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		c.setCooldown(creds.Key(), rateLimitCooldown, true)
		return nil, ErrRateLimited
	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// noteRemaining reads the X-Discogs-Ratelimit-Remaining header and opens
// a short preventive cooldown when the budget is nearly spent.
func (c *Client) noteRemaining(resp *http.Response, key string) {
	raw := resp.Header.Get("X-Discogs-Ratelimit-Remaining")
	if raw == "" {
		return
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	if remaining <= lowRemaining {
		c.logger.Debug("discogs rate budget nearly spent, cooling down",
			"remaining", remaining,
		)
		c.setCooldown(key, preventiveCooldown, false)
	}
}

func (c *Client) setCooldown(key string, d time.Duration, hard bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cd := cooldown{until: c.now().Add(d), hard: hard}
	// Never shorten or soften an active cooldown.
	if cur, ok := c.cooldowns[key]; ok && cur.until.After(cd.until) {
		return
	}
	c.cooldowns[key] = cd
}

// checkCooldown fails fast inside a hard cooldown and waits out a soft
// one.
func (c *Client) checkCooldown(ctx context.Context, key string) error {
	c.mu.Lock()
	cd, ok := c.cooldowns[key]
	if ok && !c.now().Before(cd.until) {
		delete(c.cooldowns, key)
		ok = false
	}
	wait := time.Duration(0)
	if ok {
		wait = cd.until.Sub(c.now())
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if cd.hard {
		return ErrRateLimited
	}
	return c.sleep(ctx, wait)
}

// oauthRequest POSTs to an OAuth flow endpoint with a signed header and
// returns the form-encoded body.
func (c *Client) oauthRequest(ctx context.Context, path, token, secret string, extra url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	auth, err := c.oauthHeader(http.MethodPost, fullURL, token, secret, extra)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
