package feedapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCache_SetThenGetWithinTTL(t *testing.T) {
	c := newResponseCache(30 * time.Second)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	c.set("k", []byte(`{"ok":true}`), now)
	body, ok := c.get("k", now.Add(10*time.Second))
	assert.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestResponseCache_ExpiresAfterTTL(t *testing.T) {
	c := newResponseCache(30 * time.Second)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	c.set("k", []byte(`{"ok":true}`), now)
	_, ok := c.get("k", now.Add(31*time.Second))
	assert.False(t, ok)
}

func TestResponseCache_MissOnUnknownKey(t *testing.T) {
	c := newResponseCache(30 * time.Second)
	_, ok := c.get("missing", time.Now())
	assert.False(t, ok)
}

func TestFeedCacheKey_VariesByEachComponent(t *testing.T) {
	ts := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	base := feedCacheKey("world", 20, 0, ts)

	assert.NotEqual(t, base, feedCacheKey("tech", 20, 0, ts))
	assert.NotEqual(t, base, feedCacheKey("world", 10, 0, ts))
	assert.NotEqual(t, base, feedCacheKey("world", 20, 5, ts))
	assert.NotEqual(t, base, feedCacheKey("world", 20, 0, ts.Add(time.Second)))
}
