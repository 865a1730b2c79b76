package feedapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"newsfeed/internal/domain/entity"
)

func storyWith(id, source string, sourceCount int) entity.Story {
	return entity.Story{ID: id, PrimarySource: source, SourceCount: sourceCount, Status: entity.StatusDeveloping}
}

func hasThreeConsecutiveSameSource(stories []entity.Story) bool {
	for i := 2; i < len(stories); i++ {
		if stories[i].PrimarySource == stories[i-1].PrimarySource && stories[i-1].PrimarySource == stories[i-2].PrimarySource {
			return true
		}
	}
	return false
}

func TestDiversify_NoThreeConsecutiveSameSource(t *testing.T) {
	candidates := []entity.Story{
		storyWith("s1", "bbc", 1),
		storyWith("s2", "bbc", 1),
		storyWith("s3", "bbc", 1),
		storyWith("s4", "reuters", 2),
		storyWith("s5", "ap", 1),
	}

	got := Diversify(candidates)
	assert.Len(t, got, 5)
	assert.False(t, hasThreeConsecutiveSameSource(got), "diversified output must never have 3 consecutive same-source entries: %+v", got)
}

func TestDiversify_PreservesAllCandidates(t *testing.T) {
	candidates := []entity.Story{
		storyWith("s1", "bbc", 1),
		storyWith("s2", "reuters", 1),
		storyWith("s3", "ap", 1),
	}
	got := Diversify(candidates)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, idsOf(got))
}

func TestDiversify_IsDeterministic(t *testing.T) {
	candidates := []entity.Story{
		storyWith("s1", "bbc", 1),
		storyWith("s2", "bbc", 1),
		storyWith("s3", "bbc", 1),
		storyWith("s4", "bbc", 1),
		storyWith("s5", "reuters", 1),
		storyWith("s6", "ap", 1),
	}
	first := Diversify(candidates)
	second := Diversify(candidates)
	assert.Equal(t, idsOf(first), idsOf(second))
}

func TestDiversify_SingleSourceStillDefersToAvoidTriple(t *testing.T) {
	candidates := []entity.Story{
		storyWith("s1", "bbc", 1),
		storyWith("s2", "bbc", 1),
		storyWith("s3", "bbc", 1),
		storyWith("s4", "bbc", 1),
	}
	got := Diversify(candidates)
	assert.Len(t, got, 4)
	// with only one source present, the 3rd-consecutive rule cannot be
	// avoided forever, but it still must not appear inside one pass worth
	// of eligible alternatives — here there simply are none, so the
	// leftover bbc entries land at the end via the deferred-append step.
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, idsOf(got))
}

func TestDiversify_EmptyInput(t *testing.T) {
	assert.Empty(t, Diversify(nil))
}

func TestVerificationWeight(t *testing.T) {
	assert.Equal(t, 1, verificationWeight(1))
	assert.Equal(t, 2, verificationWeight(2))
	assert.Equal(t, 2, verificationWeight(3))
	assert.Equal(t, 3, verificationWeight(4))
	assert.Equal(t, 3, verificationWeight(10))
}

func idsOf(stories []entity.Story) []string {
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return ids
}
