package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"newsfeed/internal/resilience/circuitbreaker"
	"newsfeed/internal/resilience/retry"
)

// OpenAI adapts the Chat Completions API to Provider. It does not
// implement BatchProvider: the Summarizer's batch path is only exercised
// when Claude is configured.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewOpenAI builds an OpenAI provider authenticated with apiKey.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
	}
}

// CircuitBreakerState reports the OpenAI circuit breaker's current state
// ("closed", "half-open", "open").
func (o *OpenAI) CircuitBreakerState() string {
	return o.circuitBreaker.State().String()
}

// Summarize calls the Chat Completions API with the given prompt and
// model, retrying transient failures through the circuit breaker.
func (o *OpenAI) Summarize(ctx context.Context, prompt, model string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result string
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.call(ctx, prompt, model)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai circuit breaker open, request rejected",
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("openai summarize failed after retries: %w", retryErr)
	}
	return result, nil
}

func (o *OpenAI) call(ctx context.Context, prompt, model string) (string, error) {
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	duration := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "openai summarization call failed", slog.Duration("duration", duration), slog.Any("error", err))
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
