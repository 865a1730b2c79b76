package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/domain/entity"
)

func TestDiscordChannel_NameAndEnabled(t *testing.T) {
	ch := NewDiscordChannel(DiscordConfig{Enabled: true})
	assert.Equal(t, "discord", ch.Name())
	assert.True(t, ch.IsEnabled())
}

func TestDiscordChannel_BuildPayload_TruncatesOverlongTitle(t *testing.T) {
	ch := NewDiscordChannel(DiscordConfig{Enabled: true})
	story := &entity.Story{
		Title:       string(make([]byte, maxTitleLength+50)),
		Category:    "world",
		SourceCount: 3,
	}
	payload := ch.buildPayload(story, EventBreaking)
	require.Len(t, payload.Embeds, 1)
	assert.Len(t, payload.Embeds[0].Title, maxTitleLength)
}

func TestDiscordChannel_Send_RejectsNilStory(t *testing.T) {
	ch := NewDiscordChannel(DiscordConfig{Enabled: true})
	assert.ErrorIs(t, ch.Send(context.Background(), nil, EventBreaking), ErrInvalidStory)
}

func TestDiscordChannel_Send_RejectsWhenDisabled(t *testing.T) {
	ch := NewDiscordChannel(DiscordConfig{Enabled: false})
	story := &entity.Story{ID: "story_1", Title: "Something happened"}
	assert.ErrorIs(t, ch.Send(context.Background(), story, EventBreaking), ErrChannelDisabled)
}

func TestDiscordChannel_Send_SucceedsOn2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := NewDiscordChannel(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	story := &entity.Story{ID: "story_1", Title: "Something happened", SourceCount: 2}
	assert.NoError(t, ch.Send(context.Background(), story, EventBreaking))
}

func TestDiscordChannel_Send_ReturnsClientErrorWithoutRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ch := NewDiscordChannel(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	story := &entity.Story{ID: "story_1", Title: "Something happened"}
	err := ch.Send(context.Background(), story, EventBreaking)
	require.Error(t, err)
	var clientErr *ClientError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 1, calls, "a 4xx is not retried")
}

func TestEventDescription_VariesByEvent(t *testing.T) {
	story := &entity.Story{Title: "Flood warnings issued", SourceCount: 4}
	assert.Contains(t, eventDescription(story, EventBreaking), "Breaking")
	assert.Contains(t, eventDescription(story, EventVerified), "verified")
	assert.Contains(t, eventDescription(story, EventDeveloping), "developing")
}
