package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"newsfeed/internal/resilience/circuitbreaker"
)

// ErrStoreUnavailable wraps gobreaker.ErrOpenState with the store's own
// vocabulary, so callers checking errors.Is(err, docstore.ErrStoreUnavailable)
// don't need to import gobreaker themselves.
var ErrStoreUnavailable = errors.New("docstore: circuit breaker open")

// HealthReporter is implemented by a Store that wraps its calls in a
// circuit breaker and can report the breaker's current state for an
// operator-facing health surface. NewGuarded's return value satisfies it.
type HealthReporter interface {
	CircuitBreakerState() string
}

// guardedStore wraps a Store with a circuit breaker around every call,
// the same Execute-and-translate-ErrOpenState pattern the LLM providers and
// feed fetcher use around their own outbound calls.
type guardedStore struct {
	inner   Store
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuarded wraps store with a circuit breaker tuned for document-store
// traffic (circuitbreaker.DocstoreConfig), tripping the breaker when the
// store itself is unhealthy rather than letting every caller's own retry
// loop hammer a struggling store.
func NewGuarded(store Store) Store {
	return &guardedStore{
		inner:   store,
		breaker: circuitbreaker.New(circuitbreaker.DocstoreConfig()),
	}
}

// CircuitBreakerState reports the docstore circuit breaker's current state
// ("closed", "half-open", "open"), for an operator-facing health surface.
func (g *guardedStore) CircuitBreakerState() string {
	return g.breaker.State().String()
}

func (g *guardedStore) Get(ctx context.Context, container, id, partition string) (*Document, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Get(ctx, container, id, partition)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	return result.(*Document), nil
}

func (g *guardedStore) Query(ctx context.Context, container string, pred Predicate) ([]Document, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Query(ctx, container, pred)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	return result.([]Document), nil
}

func (g *guardedStore) Upsert(ctx context.Context, container string, doc Document, etag string) (string, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Upsert(ctx, container, doc, etag)
	})
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return "", err
		}
		return "", translateBreakerErr(err)
	}
	return result.(string), nil
}

func (g *guardedStore) ChangeFeed(ctx context.Context, container, leasePrefix string) (ChangeFeedConsumer, error) {
	return g.inner.ChangeFeed(ctx, container, leasePrefix)
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
