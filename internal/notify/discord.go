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

// DiscordConfig configures a Discord webhook channel.
type DiscordConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// DiscordChannel sends story event notifications to Discord via webhook.
type DiscordChannel struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewDiscordChannel builds a DiscordChannel. Discord's webhook limit is 30
// requests/minute, hence the 0.5 req/s rate with a small burst.
func NewDiscordChannel(config DiscordConfig) *DiscordChannel {
	return &DiscordChannel{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(0.5, 3),
	}
}

func (c *DiscordChannel) Name() string    { return "discord" }
func (c *DiscordChannel) IsEnabled() bool { return c.config.Enabled }

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
	Color       int                `json:"color"`
	Footer      discordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	discordBlueColor     = 5793266
)

func (c *DiscordChannel) buildPayload(story *entity.Story, event Event) discordPayload {
	title := story.Title
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	description := eventDescription(story, event)
	description = truncate(description, maxDescriptionLength, "...")

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: description,
			URL:         storyPrimaryURL(story),
			Color:       discordBlueColor,
			Footer:      discordEmbedFooter{Text: fmt.Sprintf("%s · %d sources", story.Category, story.SourceCount)},
			Timestamp:   time.Now().Format(time.RFC3339),
		}},
	}
}

func eventDescription(story *entity.Story, event Event) string {
	switch event {
	case EventBreaking:
		return fmt.Sprintf("Breaking: %s is now corroborated by %d sources.", story.Title, story.SourceCount)
	case EventVerified:
		return fmt.Sprintf("%s has been verified across %d sources.", story.Title, story.SourceCount)
	default:
		return fmt.Sprintf("%s is developing (%d sources so far).", story.Title, story.SourceCount)
	}
}

func (c *DiscordChannel) sendOnce(ctx context.Context, story *entity.Story, event Event) error {
	payload := c.buildPayload(story, event)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		var parsed discordErrorResponse
		retryAfter := 5 * time.Second
		if json.Unmarshal(respBody, &parsed) == nil && parsed.RetryAfter > 0 {
			retryAfter = time.Duration(parsed.RetryAfter * float64(time.Second))
		} else if header := resp.Header.Get("Retry-After"); header != "" {
			retryAfter = extractRetryAfterHeader(header)
		}
		return &RateLimitError{Message: "discord rate limit exceeded", RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord client error: %s", respBody)}
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord server error: %s", respBody)}
}

// Send delivers the story event to Discord, retrying transient failures up
// to twice with a 5s/10s backoff, honoring 429 retry_after exactly.
func (c *DiscordChannel) Send(ctx context.Context, story *entity.Story, event Event) error {
	if story == nil {
		return ErrInvalidStory
	}
	if !c.config.Enabled {
		return ErrChannelDisabled
	}
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("discord rate limiter: %w", err)
	}

	const maxAttempts = 2
	const baseDelay = 5 * time.Second

	requestID := uuid.New().String()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.sendOnce(ctx, story, event)
		if err == nil {
			slog.Info("discord notification sent", slog.String("request_id", requestID), slog.String("story_id", story.ID))
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
	return fmt.Errorf("discord notification failed after %d attempts: %w", maxAttempts, lastErr)
}
