package domain

import "time"

// Session is a visitor session created when a Discogs account is linked.
// The access token pair signs upstream requests on the visitor's behalf
// and never leaves the server.
type Session struct {
	ID              string
	DiscogsUsername string
	AccessToken     string
	AccessSecret    string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Identity is the Discogs account a token pair authenticates as.
type Identity struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	ResourceURL  string `json:"resource_url,omitempty"`
	ConsumerName string `json:"consumer_name,omitempty"`
}
