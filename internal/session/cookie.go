package session

import (
	"fmt"
	"net/http"
	"time"

	"aidanwoods.dev/go-paseto"
)

// CookieName is the browser cookie carrying the sealed session id.
const CookieName = "vinylroom_session"

// Codec seals session ids into PASETO v4.local tokens for the cookie.
// The cookie is opaque to the client and tamper-evident on the way back.
type Codec struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
}

// NewCodec creates a Codec from a hex-encoded 32-byte key. An empty key
// generates a random one, invalidating outstanding cookies on restart.
func NewCodec(hexKey string, ttl time.Duration) (*Codec, error) {
	if hexKey == "" {
		return &Codec{key: paseto.NewV4SymmetricKey(), ttl: ttl}, nil
	}
	key, err := paseto.V4SymmetricKeyFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse session key: %w", err)
	}
	return &Codec{key: key, ttl: ttl}, nil
}

// Encode seals sessionID into a cookie value.
func (c *Codec) Encode(sessionID string) string {
	token := paseto.NewToken()
	now := time.Now()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(c.ttl))
	token.SetString("sid", sessionID)
	return token.V4Encrypt(c.key, nil)
}

// Decode opens a cookie value and returns the session id inside.
func (c *Codec) Decode(value string) (string, error) {
	parser := paseto.NewParser()
	token, err := parser.ParseV4Local(c.key, value, nil)
	if err != nil {
		return "", fmt.Errorf("open session cookie: %w", err)
	}
	sid, err := token.GetString("sid")
	if err != nil {
		return "", fmt.Errorf("session cookie missing sid: %w", err)
	}
	return sid, nil
}

// Cookie builds the session cookie for a session id.
func (c *Codec) Cookie(sessionID string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    c.Encode(sessionID),
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// WriteCookie sets the session cookie on a response.
func (c *Codec) WriteCookie(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, c.Cookie(sessionID, secure))
}

// ClearCookie expires the session cookie on a response.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
