package postgres

import "github.com/google/uuid"

// newOpaqueETag returns a fresh optimistic-concurrency token. Callers treat
// it as opaque, per §3's "ownership" rule.
func newOpaqueETag() string {
	return uuid.NewString()
}
