package notify

import (
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// LoadDiscordConfigFromEnv loads Discord configuration from environment
// variables, disabling the channel outright on any validation failure
// rather than propagating an error a caller would have to handle.
//
// Environment variables:
//   - DISCORD_ENABLED: enables Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: Discord webhook URL (required if enabled)
func LoadDiscordConfigFromEnv(logger *slog.Logger, getenv func(string) string) DiscordConfig {
	enabled := getenv("DISCORD_ENABLED") == "true"
	webhookURL := getenv("DISCORD_WEBHOOK_URL")

	if !enabled {
		return DiscordConfig{Enabled: false}
	}
	if webhookURL == "" {
		logger.Warn("discord webhook url is empty, disabling notifications")
		return DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("invalid discord webhook url format, disabling notifications", slog.Any("error", err))
		return DiscordConfig{Enabled: false}
	}
	if u.Scheme != "https" {
		logger.Warn("discord webhook url must use https, disabling notifications")
		return DiscordConfig{Enabled: false}
	}
	if u.Host != "discord.com" {
		logger.Warn("invalid discord webhook host, disabling notifications", slog.String("host", u.Host))
		return DiscordConfig{Enabled: false}
	}
	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("invalid discord webhook path, disabling notifications", slog.String("path", u.Path))
		return DiscordConfig{Enabled: false}
	}

	return DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

// LoadSlackConfigFromEnv loads Slack configuration from environment
// variables, disabling the channel outright on any validation failure.
//
// Environment variables:
//   - SLACK_ENABLED: enables Slack notifications (default: false)
//   - SLACK_WEBHOOK_URL: Slack webhook URL (required if enabled)
func LoadSlackConfigFromEnv(logger *slog.Logger, getenv func(string) string) SlackConfig {
	enabled := getenv("SLACK_ENABLED") == "true"
	webhookURL := getenv("SLACK_WEBHOOK_URL")

	if !enabled {
		return SlackConfig{Enabled: false}
	}
	if webhookURL == "" {
		logger.Warn("slack webhook url is empty, disabling notifications")
		return SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("invalid slack webhook url format, disabling notifications", slog.Any("error", err))
		return SlackConfig{Enabled: false}
	}
	if u.Scheme != "https" {
		logger.Warn("slack webhook url must use https, disabling notifications")
		return SlackConfig{Enabled: false}
	}
	if u.Host != "hooks.slack.com" {
		logger.Warn("invalid slack webhook host, disabling notifications", slog.String("host", u.Host))
		return SlackConfig{Enabled: false}
	}
	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("invalid slack webhook path, disabling notifications", slog.String("path", u.Path))
		return SlackConfig{Enabled: false}
	}

	return SlackConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

// BuildServiceFromEnv wires up every configured channel and returns a ready
// Service, matching the worker's channel assembly: Discord and Slack are
// loaded independently, and only the channels that come back enabled are
// handed to NewService.
func BuildServiceFromEnv(logger *slog.Logger, getenv func(string) string, maxConcurrent int) Service {
	var channels []Channel

	discordCfg := LoadDiscordConfigFromEnv(logger, getenv)
	if discordCfg.Enabled {
		channels = append(channels, NewDiscordChannel(discordCfg))
		logger.Info("discord notification channel enabled")
	} else {
		logger.Info("discord notification channel disabled")
	}

	slackCfg := LoadSlackConfigFromEnv(logger, getenv)
	if slackCfg.Enabled {
		channels = append(channels, NewSlackChannel(slackCfg))
		logger.Info("slack notification channel enabled")
	} else {
		logger.Info("slack notification channel disabled")
	}

	logger.Info("notification service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", maxConcurrent))
	return NewService(channels, maxConcurrent)
}
