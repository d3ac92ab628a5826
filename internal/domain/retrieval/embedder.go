package retrieval

import (
	"math"
	"regexp"
	"strings"
)

// DefaultDimension of embedding vectors
const DefaultDimension = 256

var tokenSplit = regexp.MustCompile(`\W+`)

// Embedder turns text into a fixed-length vector by hashing terms into
// buckets. This is a bag-of-hashed-terms scheme, not a learned embedding:
// collisions across unrelated terms are expected, and callers must not read
// semantic nearness into scores beyond lexical overlap.
type Embedder struct {
	Dimension int
}

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{Dimension: dimension}
}

// Embed is deterministic: identical text always yields an identical vector.
// Tokens shorter than 3 characters are discarded; an input with no usable
// tokens yields the zero vector.
func (e *Embedder) Embed(text string) []float32 {
	vec := make([]float32, e.Dimension)

	freq := make(map[string]int)
	for _, tok := range tokenSplit.Split(strings.ToLower(text), -1) {
		if len(tok) < 3 {
			continue
		}
		freq[tok]++
	}

	for tok, count := range freq {
		vec[e.bucket(tok)] += float32(count)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// bucket hashes a token with a polynomial rolling hash (h = h*31 + byte)
func (e *Embedder) bucket(token string) int {
	var h uint32
	for i := 0; i < len(token); i++ {
		h = h*31 + uint32(token[i])
	}
	return int(h % uint32(e.Dimension))
}
