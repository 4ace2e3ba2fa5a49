package recommend

import (
	"cmp"
	"math"
	"slices"

	"github.com/spacesedan/trendlens/internal/models"
)

// BuildFilter turns a normalized query into vector index equality filters.
// Discovery never filters by source. A nil map means no filter.
func BuildFilter(q models.RecommendationQuery) map[string]string {
	filter := map[string]string{}
	if !q.Discover && q.Source != models.FilterAll {
		filter[models.MetadataSource] = q.Source
	}
	if q.Type != models.FilterAll {
		filter[models.MetadataType] = q.Type
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// Rerank scores each match as round((similarity + overlap*bonus) * 100),
// where overlap counts the match's distinct tags found among interests.
func Rerank(matches []models.VectorMatch, interests []string, bonus float64) []models.RecommendationMatch {
	wanted := make(map[string]struct{}, len(interests))
	for _, interest := range interests {
		wanted[interest] = struct{}{}
	}

	ranked := make([]models.RecommendationMatch, 0, len(matches))
	for _, m := range matches {
		meta := models.NormalizeMetadata(m.Metadata)

		overlap := 0
		seen := make(map[string]struct{}, len(meta.Tags))
		for _, tag := range meta.Tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			if _, ok := wanted[tag]; ok {
				overlap++
			}
		}

		ranked = append(ranked, models.RecommendationMatch{
			VectorMetadata: meta,
			Similarity:     m.Score,
			RelevanceScore: int(math.Round((m.Score + float64(overlap)*bonus) * 100)),
		})
	}
	return ranked
}

// ApplyDiscovery keeps only the matches scoring below threshold.
func ApplyDiscovery(matches []models.RecommendationMatch, threshold int) []models.RecommendationMatch {
	kept := make([]models.RecommendationMatch, 0, len(matches))
	for _, m := range matches {
		if m.RelevanceScore < threshold {
			kept = append(kept, m)
		}
	}
	return kept
}

// SortAndTruncate orders by relevance, highest first, keeping index order for
// ties, and returns at most topK matches.
func SortAndTruncate(matches []models.RecommendationMatch, topK int) []models.RecommendationMatch {
	slices.SortStableFunc(matches, func(a, b models.RecommendationMatch) int {
		return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
