package discogs

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Credentials authenticate a request against the Discogs API. Either a
// personal access Token is set (demo mode), or an OAuth 1.0a
// AccessToken/AccessSecret pair from a linked account. Both empty means
// unauthenticated, which Discogs allows for a few public endpoints.
type Credentials struct {
	Token        string
	AccessToken  string
	AccessSecret string
}

// Key returns a stable identifier for per-credential client state such
// as rate-limit cooldowns.
func (c Credentials) Key() string {
	if c.AccessToken != "" {
		return "oauth:" + c.AccessToken
	}
	if c.Token != "" {
		return "token:" + c.Token
	}
	return "anonymous"
}

// RequestToken is the temporary token pair opening a three-legged OAuth
// flow, together with the URL the visitor must approve at.
type RequestToken struct {
	Token        string
	Secret       string
	AuthorizeURL string
}

// AccessToken is the long-lived token pair minted once the visitor
// approves the request token.
type AccessToken struct {
	Token  string
	Secret string
}

// GetRequestToken starts the OAuth flow. callbackURL is where Discogs
// sends the visitor back after approval.
func (c *Client) GetRequestToken(ctx context.Context, callbackURL string) (*RequestToken, error) {
	extra := url.Values{"oauth_callback": {callbackURL}}
	body, err := c.oauthRequest(ctx, "/oauth/request_token", "", "", extra)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse request token response: %w", err)
	}
	token := vals.Get("oauth_token")
	secret := vals.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, fmt.Errorf("request token response missing token pair")
	}

	return &RequestToken{
		Token:        token,
		Secret:       secret,
		AuthorizeURL: c.authorizeBaseURL + "?oauth_token=" + url.QueryEscape(token),
	}, nil
}

// GetAccessToken exchanges an approved request token for an access token.
func (c *Client) GetAccessToken(ctx context.Context, token, secret, verifier string) (*AccessToken, error) {
	extra := url.Values{"oauth_verifier": {verifier}}
	body, err := c.oauthRequest(ctx, "/oauth/access_token", token, secret, extra)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse access token response: %w", err)
	}
	accessToken := vals.Get("oauth_token")
	accessSecret := vals.Get("oauth_token_secret")
	if accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("access token response missing token pair")
	}

	return &AccessToken{Token: accessToken, Secret: accessSecret}, nil
}

// authHeader builds the Authorization header value for creds. Personal
// tokens use the simple Discogs scheme; OAuth tokens get a full
// HMAC-SHA1 signature over the request.
func (c *Client) authHeader(method, rawURL string, creds Credentials) (string, error) {
	if creds.AccessToken != "" {
		return c.oauthHeader(method, rawURL, creds.AccessToken, creds.AccessSecret, nil)
	}
	if creds.Token != "" {
		return "Discogs token=" + creds.Token, nil
	}
	return "", nil
}

// oauthHeader signs method+rawURL with HMAC-SHA1 and returns the OAuth
// Authorization header. extra carries flow parameters such as
// oauth_callback or oauth_verifier.
func (c *Client) oauthHeader(method, rawURL, token, tokenSecret string, extra url.Values) (string, error) {
	nonce, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauthParams["oauth_token"] = token
	}
	for k := range extra {
		oauthParams[k] = extra.Get(k)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	// The signature base string covers the oauth parameters plus the
	// query string, percent-encoded and sorted.
	params := make([]string, 0, len(oauthParams)+len(u.Query()))
	for k, v := range oauthParams {
		params = append(params, percentEncode(k)+"="+percentEncode(v))
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, percentEncode(k)+"="+percentEncode(v))
		}
	}
	sort.Strings(params)

	baseURL := u.Scheme + "://" + u.Host + u.Path
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(params, "&"))
	signingKey := percentEncode(c.consumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(percentEncode(k))
		b.WriteString(`="`)
		b.WriteString(percentEncode(oauthParams[k]))
		b.WriteString(`"`)
	}
	return b.String(), nil
}

// percentEncode applies RFC 3986 encoding as OAuth 1.0a requires, which
// is stricter than url.QueryEscape about unreserved characters.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
