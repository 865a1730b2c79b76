package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"newsfeed/internal/domain/entity"
)

// SlackConfig configures a Slack Incoming Webhook channel.
type SlackConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// SlackChannel sends story event notifications to Slack via Block Kit.
type SlackChannel struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSlackChannel builds a SlackChannel. Slack's incoming webhook limit is
// one message per second.
func NewSlackChannel(config SlackConfig) *SlackChannel {
	return &SlackChannel{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(1.0, 1),
	}
}

func (s *SlackChannel) Name() string    { return "slack" }
func (s *SlackChannel) IsEnabled() bool { return s.config.Enabled }

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string           `json:"type"`
	Text     *slackTextBlock  `json:"text,omitempty"`
	Elements []slackTextBlock `json:"elements,omitempty"`
}

type slackTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	maxSectionTextLength = 3000
	maxFallbackLength    = 150
)

func (s *SlackChannel) buildPayload(story *entity.Story, event Event) slackPayload {
	fallback := fmt.Sprintf("%s - %s", story.Title, story.Category)
	fallback = truncate(fallback, maxFallbackLength, "...")

	titleLink := fmt.Sprintf("*<%s|%s>*", storyPrimaryURL(story), story.Title)
	sectionText := truncate(fmt.Sprintf("%s\n\n%s", titleLink, eventDescription(story, event)), maxSectionTextLength, "...")

	return slackPayload{
		Text: fallback,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackTextBlock{Type: "mrkdwn", Text: sectionText}},
			{Type: "context", Elements: []slackTextBlock{
				{Type: "mrkdwn", Text: fmt.Sprintf("%s · %s", story.Category, time.Now().Format(time.RFC3339))},
			}},
		},
	}
}

func (s *SlackChannel) sendOnce(ctx context.Context, story *entity.Story, event Event) error {
	payload := s.buildPayload(story, event)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 5 * time.Second
		if header := resp.Header.Get("Retry-After"); header != "" {
			retryAfter = extractRetryAfterHeader(header)
		}
		return &RateLimitError{Message: "slack rate limit exceeded", RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("slack client error: %s", respBody)}
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("slack server error: %s", respBody)}
}

// Send delivers the story event to Slack, with the same retry envelope as
// DiscordChannel.
func (s *SlackChannel) Send(ctx context.Context, story *entity.Story, event Event) error {
	if story == nil {
		return ErrInvalidStory
	}
	if !s.config.Enabled {
		return ErrChannelDisabled
	}
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("slack rate limiter: %w", err)
	}

	const maxAttempts = 2
	const baseDelay = 5 * time.Second

	requestID := uuid.New().String()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.sendOnce(ctx, story, event)
		if err == nil {
			slog.Info("slack notification sent", slog.String("request_id", requestID), slog.String("story_id", story.ID))
			return nil
		}
		lastErr = err

		if rl, ok := is429Error(err); ok {
			select {
			case <-time.After(rl.RetryAfter):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(baseDelay * time.Duration(attempt)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("slack notification failed after %d attempts: %w", maxAttempts, lastErr)
}
