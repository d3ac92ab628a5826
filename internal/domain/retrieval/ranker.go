package retrieval

import (
	"math"
	"sort"
)

// DefaultTopK candidates kept after ranking
const DefaultTopK = 5

// Cosine returns dot(a,b) / (||a||*||b||). It is 0, never an error, when the
// dimensions differ or either vector has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored pairs a candidate index with its similarity to the query
type Scored struct {
	Index int
	Score float64
}

// Rank scores every candidate vector against the query and returns at most k
// results sorted by descending similarity. Ties keep input order.
func Rank(query []float32, vectors [][]float32, k int) []Scored {
	if k <= 0 {
		k = DefaultTopK
	}
	scored := make([]Scored, 0, len(vectors))
	for i, v := range vectors {
		scored = append(scored, Scored{Index: i, Score: Cosine(query, v)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
