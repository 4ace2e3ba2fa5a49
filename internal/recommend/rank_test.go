package recommend

import (
	"fmt"
	"testing"

	"github.com/spacesedan/trendlens/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(id string, score float64, tags ...string) models.VectorMatch {
	return models.VectorMatch{
		Metadata: models.VectorMetadata{ID: id, Tags: tags},
		Score:    score,
	}
}

func TestRerankInterestOverlap(t *testing.T) {
	ranked := Rerank([]models.VectorMatch{match("a", 0.81, "ai", "python")}, []string{"ai", "rust"}, 0.01)
	require.Len(t, ranked, 1)
	assert.Equal(t, 82, ranked[0].RelevanceScore)
	assert.Equal(t, 0.81, ranked[0].Similarity)
}

func TestRerankCountsDistinctExactTags(t *testing.T) {
	ranked := Rerank([]models.VectorMatch{
		match("dup", 0.5, "rust", "rust"),
		match("case", 0.5, "Rust"),
		match("none", 0.5),
	}, []string{"rust"}, 0.01)

	assert.Equal(t, 51, ranked[0].RelevanceScore)
	assert.Equal(t, 50, ranked[1].RelevanceScore)
	assert.Equal(t, 50, ranked[2].RelevanceScore)
	assert.NotNil(t, ranked[2].Tags)
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name string
		q    models.RecommendationQuery
		want map[string]string
	}{
		{"all", models.RecommendationQuery{Source: "all", Type: "all"}, nil},
		{"source and type", models.RecommendationQuery{Source: "github", Type: "githubrepo"},
			map[string]string{"source": "github", "type": "githubrepo"}},
		{"discovery drops source", models.RecommendationQuery{Source: "github", Type: "githubrepo", Discover: true},
			map[string]string{"type": "githubrepo"}},
		{"discovery without type", models.RecommendationQuery{Source: "reddit", Type: "all", Discover: true}, nil},
		{"mixed case is normalized first", models.RecommendationQuery{Source: " GitHub ", Type: "ALL"},
			map[string]string{"source": "github"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilter(tt.q.Normalize()))
		})
	}
}

func TestApplyDiscoveryExcludesConfidentMatches(t *testing.T) {
	ranked := Rerank([]models.VectorMatch{
		match("confident", 0.81, "ai"),
		match("edge", 0.40),
		match("below", 0.39),
		match("far", 0.05),
	}, []string{"ai"}, 0.01)

	kept := ApplyDiscovery(ranked, 40)
	ids := make([]string, 0, len(kept))
	for _, m := range kept {
		assert.Less(t, m.RelevanceScore, 40)
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"below", "far"}, ids)
}

func TestSortAndTruncate(t *testing.T) {
	var ranked []models.RecommendationMatch
	for i, score := range []int{10, 90, 50, 90, 70} {
		ranked = append(ranked, models.RecommendationMatch{
			VectorMetadata: models.VectorMetadata{ID: fmt.Sprintf("m%d", i)},
			RelevanceScore: score,
		})
	}

	out := SortAndTruncate(ranked, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m3", out[1].ID, "ties keep index order")
	assert.Equal(t, "m4", out[2].ID)
}

func TestSortAndTruncateShortList(t *testing.T) {
	out := SortAndTruncate([]models.RecommendationMatch{{RelevanceScore: 1}}, 10)
	assert.Len(t, out, 1)
}
