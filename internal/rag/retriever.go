package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity returns dot(a,b)/(|a|*|b|). A zero-norm vector or a length
// mismatch yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type scored struct {
	pos   int
	score float64
}

// Retrieve returns the texts of the min(topK, Len()) documents most similar to query.
// Equal scores keep corpus order, so the earlier document wins a tie.
func (x *Index) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		return []string{}, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}

	ranked := x.rank(vecs[0])
	if topK > len(ranked) {
		topK = len(ranked)
	}

	out := make([]string, topK)
	for i := 0; i < topK; i++ {
		out[i] = x.docs[ranked[i].pos].Text
	}
	return out, nil
}

func (x *Index) rank(query []float32) []scored {
	ranked := make([]scored, len(x.vectors))
	for i, v := range x.vectors {
		ranked[i] = scored{pos: i, score: CosineSimilarity(query, v)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}
