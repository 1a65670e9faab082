package ai

import (
	"errors"
	"strings"
)

var (
	// ErrNoProviders is returned when a gateway has no configured backends.
	ErrNoProviders = errors.New("no embedding providers configured")

	// ErrRateLimited indicates the upstream service rejected the request due
	// to rate limiting (a 429-equivalent response).
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrAllProvidersFailed is returned when every configured backend in the
	// fallback list failed for a request.
	ErrAllProvidersFailed = errors.New("all embedding providers failed")
)

// IsRateLimited reports whether an error looks like an upstream
// 429-equivalent response. Providers surface these inconsistently, so this
// also matches on common message fragments.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
