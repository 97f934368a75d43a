package recommend

import "github.com/toolforge/toolforge/pkg/toolforge/models"

// Weights for the content-based similarity score
const (
	weightCategory    = 0.30
	weightSubcategory = 0.10
	weightPricing     = 0.15
	weightFeatures    = 0.35
	weightTags        = 0.20
)

// Jaccard returns |A∩B| / |A∪B| for two string sets. Either set being empty
// yields 0, never NaN.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// contentScore computes the weighted similarity between a source tool and a
// candidate: category and pricing matches plus Jaccard overlap of features
// and tags.
func contentScore(source, candidate *models.Tool) float64 {
	score := 0.0

	if source.Category == candidate.Category {
		score += weightCategory
		if source.Subcategory != "" && source.Subcategory == candidate.Subcategory {
			score += weightSubcategory
		}
	}
	if source.Pricing == candidate.Pricing {
		score += weightPricing
	}

	score += Jaccard(source.Features, candidate.Features) * weightFeatures
	score += Jaccard(source.TagNames(), candidate.TagNames()) * weightTags

	return score
}
