package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"newsfeed/internal/domain/entity"
)

// RateLimitError represents a 429 rate limit response from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string { return e.Message }

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string { return e.Message }

func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError reports whether a webhook send is worth retrying: 5xx
// and network/context errors are, 4xx client errors aren't, and 429s are
// handled separately via is429Error.
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}
	return true
}

// extractRetryAfterHeader parses a webhook's Retry-After header, falling
// back to a 5s default.
func extractRetryAfterHeader(value string) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 5 * time.Second
}

func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + suffix
}

// RateLimiter is a token-bucket limiter shared by every webhook channel.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a RateLimiter allowing requestsPerSecond sustained,
// with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a token is available or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// storyPrimaryURL returns the URL of the source article matching the
// story's primary source, or the first source article's URL as a
// fallback — a story itself carries no URL, only its source articles do.
func storyPrimaryURL(story *entity.Story) string {
	for _, ref := range story.SourceArticles {
		if ref.Source == story.PrimarySource {
			return ref.URL
		}
	}
	if len(story.SourceArticles) > 0 {
		return story.SourceArticles[0].URL
	}
	return ""
}
