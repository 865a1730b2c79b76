// Package categorize assigns a closed-set category and confidence score to an
// article from its URL, keywords, and source, per §4.2. It is pure (no I/O);
// the scoring tables it blends are configuration data loaded at startup, not
// code — see Config and the Open Question in SPEC_FULL.md §0.
package categorize

import (
	"sort"
	"strings"
)

// Category is one of the closed set of categories the pipeline recognizes.
type Category string

const (
	Politics      Category = "politics"
	Technology    Category = "technology"
	Business      Category = "business"
	Sports        Category = "sports"
	World         Category = "world"
	Science       Category = "science"
	Health        Category = "health"
	Entertainment Category = "entertainment"
	Environment   Category = "environment"
	General       Category = "general"
)

// generalFallbackThreshold is the conservative default named in the spec's
// Open Questions; operators should calibrate it on a labeled sample.
const generalFallbackThreshold = 0.30

// Weight factors for the blended score: URL 0.4, keywords 0.4, source 0.2.
const (
	weightURL      = 0.4
	weightKeywords = 0.4
	weightSource   = 0.2
)

// KeywordTier is a keyword dictionary tier; raw per-category keyword score is
// the sum of tier weights for every match, divided by 10 and capped at 1.0.
type KeywordTier int

const (
	TierHigh   KeywordTier = 3
	TierMedium KeywordTier = 2
	TierLow    KeywordTier = 1
)

// Config holds the scoring tables the categorizer blends. It is loaded at
// startup from configuration data (see internal/poll's feed registry
// loader), never hardcoded, per the spec's Open Question on keyword tiers.
type Config struct {
	// URLPatterns maps a substring to the category it signals when found
	// in the article URL, e.g. "/politics/" -> politics, "espn" -> sports.
	URLPatterns map[string]Category

	// Keywords maps a category to its tiered keyword dictionary: keyword ->
	// tier weight.
	Keywords map[Category]map[string]KeywordTier

	// SourceDistribution maps a canonical source id to its fixed category
	// distribution, e.g. "techcrunch" -> {technology: 1.0}.
	SourceDistribution map[string]map[Category]float64

	// GeneralFallbackThreshold overrides generalFallbackThreshold if set.
	GeneralFallbackThreshold float64
}

// Result is the categorizer's output: the winning category, its blended
// confidence, and the full per-category score breakdown (useful for
// debugging and offline calibration of the fallback threshold).
type Result struct {
	Category   Category
	Confidence float64
	AllScores  map[Category]float64
}

// Categorizer scores an article against a Config's tables and returns the
// argmax category, or General below the fallback threshold.
type Categorizer struct {
	cfg Config
}

// New builds a Categorizer from the given scoring tables.
func New(cfg Config) *Categorizer {
	return &Categorizer{cfg: cfg}
}

// Categorize blends URL, keyword, and source signals for a single article
// and returns the winning category and its confidence, per §4.2.
func (c *Categorizer) Categorize(title, description, url, source string) Result {
	scores := make(map[Category]float64)

	urlScores := c.urlScores(url)
	keywordScores := c.keywordScores(title, description)
	sourceScores := c.sourceScores(source)

	for _, cat := range allCategories() {
		scores[cat] = weightURL*urlScores[cat] + weightKeywords*keywordScores[cat] + weightSource*sourceScores[cat]
	}

	best, bestScore := argmax(scores)

	threshold := generalFallbackThreshold
	if c.cfg.GeneralFallbackThreshold > 0 {
		threshold = c.cfg.GeneralFallbackThreshold
	}

	if bestScore < threshold {
		return Result{Category: General, Confidence: 0.0, AllScores: scores}
	}
	return Result{Category: best, Confidence: bestScore, AllScores: scores}
}

func (c *Categorizer) urlScores(url string) map[Category]float64 {
	scores := make(map[Category]float64)
	lower := strings.ToLower(url)
	for pattern, cat := range c.cfg.URLPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			if scores[cat] < 1.0 {
				scores[cat] = 1.0
			}
		}
	}
	return scores
}

func (c *Categorizer) keywordScores(title, description string) map[Category]float64 {
	text := strings.ToLower(title + " " + description)
	scores := make(map[Category]float64)

	for cat, dict := range c.cfg.Keywords {
		var raw float64
		for keyword, tier := range dict {
			if strings.Contains(text, strings.ToLower(keyword)) {
				raw += float64(tier)
			}
		}
		score := raw / 10.0
		if score > 1.0 {
			score = 1.0
		}
		scores[cat] = score
	}
	return scores
}

func (c *Categorizer) sourceScores(source string) map[Category]float64 {
	dist, ok := c.cfg.SourceDistribution[strings.ToLower(source)]
	if !ok {
		return map[Category]float64{}
	}
	scores := make(map[Category]float64, len(dist))
	for cat, weight := range dist {
		scores[cat] = weight
	}
	return scores
}

func allCategories() []Category {
	return []Category{
		Politics, Technology, Business, Sports, World,
		Science, Health, Entertainment, Environment, General,
	}
}

// argmax returns the category with the highest score, breaking ties by
// category name for determinism.
func argmax(scores map[Category]float64) (Category, float64) {
	cats := make([]Category, 0, len(scores))
	for cat := range scores {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var best Category
	var bestScore float64 = -1
	for _, cat := range cats {
		if scores[cat] > bestScore {
			best = cat
			bestScore = scores[cat]
		}
	}
	return best, bestScore
}
