package poll

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"newsfeed/internal/domain/categorize"
)

// categoryRegistryFile is the on-disk shape of the categorizer's scoring
// tables — config data, not code, per the Open Question resolution in
// SPEC_FULL.md §0.
type categoryRegistryFile struct {
	URLPatterns              map[string]string             `yaml:"url_patterns"`
	Keywords                 map[string]map[string]int     `yaml:"keywords"`
	SourceDistribution       map[string]map[string]float64 `yaml:"source_distribution"`
	GeneralFallbackThreshold float64                        `yaml:"general_fallback_threshold"`
}

// LoadCategorizeConfig reads the categorizer's scoring tables from a YAML
// file and builds a categorize.Config from them.
func LoadCategorizeConfig(path string) (categorize.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return categorize.Config{}, fmt.Errorf("read category config %s: %w", path, err)
	}
	var parsed categoryRegistryFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return categorize.Config{}, fmt.Errorf("parse category config %s: %w", path, err)
	}

	cfg := categorize.Config{
		URLPatterns:              make(map[string]categorize.Category, len(parsed.URLPatterns)),
		Keywords:                 make(map[categorize.Category]map[string]categorize.KeywordTier, len(parsed.Keywords)),
		SourceDistribution:       make(map[string]map[categorize.Category]float64, len(parsed.SourceDistribution)),
		GeneralFallbackThreshold: parsed.GeneralFallbackThreshold,
	}
	for pattern, cat := range parsed.URLPatterns {
		cfg.URLPatterns[pattern] = categorize.Category(cat)
	}
	for cat, dict := range parsed.Keywords {
		tiered := make(map[string]categorize.KeywordTier, len(dict))
		for keyword, tier := range dict {
			tiered[keyword] = categorize.KeywordTier(tier)
		}
		cfg.Keywords[categorize.Category(cat)] = tiered
	}
	for source, dist := range parsed.SourceDistribution {
		weighted := make(map[categorize.Category]float64, len(dist))
		for cat, weight := range dist {
			weighted[categorize.Category(cat)] = weight
		}
		cfg.SourceDistribution[source] = weighted
	}
	return cfg, nil
}
