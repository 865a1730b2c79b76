package notify

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func envLookup(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDiscordConfigFromEnv_DisabledByDefault(t *testing.T) {
	cfg := LoadDiscordConfigFromEnv(testLogger(), envLookup(nil))
	assert.False(t, cfg.Enabled)
}

func TestLoadDiscordConfigFromEnv_EnabledWithValidWebhook(t *testing.T) {
	cfg := LoadDiscordConfigFromEnv(testLogger(), envLookup(map[string]string{
		"DISCORD_ENABLED":     "true",
		"DISCORD_WEBHOOK_URL": "https://discord.com/api/webhooks/123/abc",
	}))
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://discord.com/api/webhooks/123/abc", cfg.WebhookURL)
}

func TestLoadDiscordConfigFromEnv_RejectsNonDiscordHost(t *testing.T) {
	cfg := LoadDiscordConfigFromEnv(testLogger(), envLookup(map[string]string{
		"DISCORD_ENABLED":     "true",
		"DISCORD_WEBHOOK_URL": "https://evil.example.com/api/webhooks/123/abc",
	}))
	assert.False(t, cfg.Enabled)
}

func TestLoadDiscordConfigFromEnv_RejectsNonHTTPS(t *testing.T) {
	cfg := LoadDiscordConfigFromEnv(testLogger(), envLookup(map[string]string{
		"DISCORD_ENABLED":     "true",
		"DISCORD_WEBHOOK_URL": "http://discord.com/api/webhooks/123/abc",
	}))
	assert.False(t, cfg.Enabled)
}

func TestLoadDiscordConfigFromEnv_RejectsWrongPath(t *testing.T) {
	cfg := LoadDiscordConfigFromEnv(testLogger(), envLookup(map[string]string{
		"DISCORD_ENABLED":     "true",
		"DISCORD_WEBHOOK_URL": "https://discord.com/not-a-webhook",
	}))
	assert.False(t, cfg.Enabled)
}

func TestLoadSlackConfigFromEnv_EnabledWithValidWebhook(t *testing.T) {
	cfg := LoadSlackConfigFromEnv(testLogger(), envLookup(map[string]string{
		"SLACK_ENABLED":     "true",
		"SLACK_WEBHOOK_URL": "https://hooks.slack.com/services/T000/B000/XXXX",
	}))
	assert.True(t, cfg.Enabled)
}

func TestLoadSlackConfigFromEnv_RejectsWrongHost(t *testing.T) {
	cfg := LoadSlackConfigFromEnv(testLogger(), envLookup(map[string]string{
		"SLACK_ENABLED":     "true",
		"SLACK_WEBHOOK_URL": "https://evil.example.com/services/T000/B000/XXXX",
	}))
	assert.False(t, cfg.Enabled)
}

func TestBuildServiceFromEnv_NoChannelsEnabledStillBuildsService(t *testing.T) {
	svc := BuildServiceFromEnv(testLogger(), envLookup(nil), 10)
	assert.NotNil(t, svc)
	assert.Empty(t, svc.GetChannelHealth())
}

func TestBuildServiceFromEnv_WiresEnabledChannels(t *testing.T) {
	svc := BuildServiceFromEnv(testLogger(), envLookup(map[string]string{
		"DISCORD_ENABLED":     "true",
		"DISCORD_WEBHOOK_URL": "https://discord.com/api/webhooks/123/abc",
	}), 10)
	health := svc.GetChannelHealth()
	assert.Len(t, health, 1)
	assert.Equal(t, "discord", health[0].Name)
}
