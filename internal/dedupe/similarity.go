package dedupe

import (
	"github.com/agext/levenshtein"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

var levParams = levenshtein.NewParams()

// nameSimilarity is Levenshtein similarity over folded strings,
// in [0, 1].
func nameSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, levParams)
}

// skillOverlap is Jaccard similarity over skill sets. Two empty sets
// count as full overlap so skill-less sources are not penalized.
func skillOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}

	intersection := 0
	for _, s := range b {
		if set[s] {
			intersection++
		}
	}

	union := len(set)
	for _, s := range b {
		if !set[s] {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

// score computes the weighted similarity between two candidates:
// title similarity dominant, then company, skill overlap, and city
// equality. Weights and the match threshold come from configuration.
func score(cfg config.DedupeConfig, a, b model.PostingCandidate) float64 {
	total := cfg.TitleWeight + cfg.CompanyWeight + cfg.CityWeight + cfg.SkillWeight
	if total <= 0 {
		return 0
	}

	cityEq := 0.0
	if a.CityKey == b.CityKey {
		cityEq = 1
	}

	s := cfg.TitleWeight*nameSimilarity(a.TitleKey, b.TitleKey) +
		cfg.CompanyWeight*nameSimilarity(a.CompanyKey, b.CompanyKey) +
		cfg.CityWeight*cityEq +
		cfg.SkillWeight*skillOverlap(a.Skills, b.Skills)

	return s / total
}
