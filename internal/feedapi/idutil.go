package feedapi

import (
	"errors"
	"strings"
)

// ErrInvalidStoryID is returned when a path segment doesn't look like a
// story id.
var ErrInvalidStoryID = errors.New("invalid story id")

// extractStoryID pulls the story id out of a request path under prefix,
// optionally followed by suffix (e.g. "/sources"). It returns a string
// rather than an int64 since story ids are opaque "story_<timestamp>_<hex>"
// strings, not database surrogate keys, and additionally strips a known
// trailing path segment for the two-route /story/{id} and
// /story/{id}/sources pattern.
func extractStoryID(path, prefix, suffix string) (string, error) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", ErrInvalidStoryID
	}
	if suffix != "" {
		trimmed := strings.TrimSuffix(rest, suffix)
		if trimmed == rest {
			return "", ErrInvalidStoryID
		}
		rest = trimmed
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", ErrInvalidStoryID
	}
	return rest, nil
}
