package summarize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsfeed/internal/domain/entity"
)

func TestBuildPrompt_OrdersSourcesByPublishedAt(t *testing.T) {
	now := time.Now()
	story := &entity.Story{
		SourceArticles: []entity.SourceArticleRef{
			{Source: "reuters", Title: "second report", PublishedAt: now.Add(time.Hour)},
			{Source: "bbc", Title: "first report", PublishedAt: now},
		},
	}

	prompt := buildPrompt(story)

	firstIdx := indexOf(prompt, "first report")
	secondIdx := indexOf(prompt, "second report")
	assert.Greater(t, secondIdx, firstIdx)
	assert.Contains(t, prompt, "2 sources")
}

func TestBuildPrompt_SingularSourceCount(t *testing.T) {
	story := &entity.Story{
		SourceArticles: []entity.SourceArticleRef{
			{Source: "bbc", Title: "only report", PublishedAt: time.Now()},
		},
	}

	prompt := buildPrompt(story)
	assert.Contains(t, prompt, "1 source:")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
