// Package llm wraps the two interchangeable AI providers (Claude, OpenAI)
// behind a single opaque interface so the Summarizer never branches on
// which one is configured. Both adapters carry the same reliability
// envelope: a circuit breaker, retry with backoff, and a per-call timeout.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider generates a single completion from a prompt. model selects the
// underlying API model id; timeout bounds the call, including retries.
type Provider interface {
	Summarize(ctx context.Context, prompt, model string, timeout time.Duration) (string, error)
}

// ErrContentPolicyRefusal marks a provider response rejected by the
// upstream API's content policy — the Summarizer must not retry these,
// unlike a transient network or rate-limit failure.
var ErrContentPolicyRefusal = fmt.Errorf("llm: content policy refusal")

// HealthReporter is implemented by adapters that wrap their calls in a
// circuit breaker and can report its current state for an operator-facing
// health surface. Both Claude and OpenAI satisfy it.
type HealthReporter interface {
	CircuitBreakerState() string
}

// BatchResult is a single completed prompt's outcome from a batch job.
type BatchResult struct {
	RequestID string
	Text      string
	Err       error
}

// BatchProvider is implemented by adapters that also support the
// asynchronous batch submission path (§4.6 batch mode). Not every Provider
// needs to support it — the Summarizer falls back to the real-time path
// when a provider doesn't implement this interface.
type BatchProvider interface {
	Provider

	// SubmitBatch submits every prompt together and returns a provider-side
	// batch job id to poll later.
	SubmitBatch(ctx context.Context, prompts map[string]string, model string) (batchID string, err error)

	// PollBatch reports whether the batch has finished and, if so, the
	// per-request results keyed by the same request id passed to
	// SubmitBatch.
	PollBatch(ctx context.Context, batchID string) (done bool, results []BatchResult, err error)
}
