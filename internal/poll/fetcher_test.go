package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Sample Feed</title>
<item>
  <title>Earthquake rattles coastal region</title>
  <link>https://example.com/a/1?utm_source=rss&amp;id=1</link>
  <description>A strong earthquake struck today.</description>
  <guid>guid-1</guid>
  <pubDate>Mon, 02 Jan 2006 15:04:05 MST</pubDate>
</item>
</channel></rss>`

func TestFeedFetcher_ParsesItemsAndCanonicalizesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFeedFetcher(5 * time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, "", "")
	require.NoError(t, err)
	require.False(t, result.NotModified)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, "Earthquake rattles coastal region", item.Title)
	assert.Equal(t, "https://example.com/a/1?id=1", item.URL)
	assert.Equal(t, `"v1"`, result.ETag)
}

func TestFeedFetcher_NotModifiedOn304(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		t.Fatalf("expected conditional GET header")
	}))
	defer srv.Close()

	f := NewFeedFetcher(5 * time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "")
	require.NoError(t, err)
	assert.True(t, result.NotModified)
}

func TestCanonicalizeURL_StripsTrackingParamsAndFragment(t *testing.T) {
	got := canonicalizeURL("https://Example.com/Article/?utm_source=x&ref=y&id=1#section")
	assert.Equal(t, "https://example.com/Article?id=1", got)
}

func TestDeriveArticleID_Deterministic(t *testing.T) {
	a := deriveArticleID("bbc", "https://example.com/a")
	b := deriveArticleID("bbc", "https://example.com/a")
	c := deriveArticleID("cnn", "https://example.com/a")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
