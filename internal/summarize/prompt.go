package summarize

import (
	"fmt"
	"sort"
	"strings"

	"newsfeed/internal/domain/entity"
)

// buildPrompt assembles the generation prompt from a story's source
// articles, ordered by published_at per §4.6.
func buildPrompt(story *entity.Story) string {
	refs := make([]entity.SourceArticleRef, len(story.SourceArticles))
	copy(refs, story.SourceArticles)
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].PublishedAt.Before(refs[j].PublishedAt)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following news event, corroborated by %d source%s:\n\n",
		len(refs), plural(len(refs)))
	for i, ref := range refs {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, ref.Source, ref.Title)
	}
	b.WriteString("\nWrite a concise, neutral summary of the event for a news feed reader.")
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
