package discogs

import "errors"

// Sentinel errors returned by the Discogs client. Callers match these
// with errors.Is and translate them into domain errors at the service
// boundary.
var (
	ErrNotFound     = errors.New("discogs: resource not found")
	ErrUnauthorized = errors.New("discogs: invalid or missing credentials")
	ErrForbidden    = errors.New("discogs: access denied")
	ErrRateLimited  = errors.New("discogs: rate limited")
	ErrServer       = errors.New("discogs: server error")
)

// retryable reports whether a request that failed with err is worth
// retrying. Credential problems and missing resources never recover on
// retry, and a rate limit only gets worse when hammered.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrRateLimited):
		return false
	default:
		return true
	}
}
