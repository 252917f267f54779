// Package rag holds the in-memory semantic index over the news corpus and
// the similarity ranking used to pick prompt context.
package rag

import (
	"context"
	"errors"
	"fmt"

	"fin-advisor/internal/embedding"
	"fin-advisor/internal/models"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Index pairs every corpus document with its vector, in corpus order.
// It is never mutated after Build and is safe for concurrent readers.
type Index struct {
	docs     []models.Document
	vectors  [][]float32
	embedder embedding.Embedder
}

// Build embeds all documents with one call. When the embedder is a Fitter it is
// fitted on the corpus first and the fitted instance is kept for queries, so
// documents and queries always share one vector space.
func Build(ctx context.Context, embedder embedding.Embedder, docs []models.Document) (*Index, error) {
	if len(docs) == 0 {
		return nil, embedding.ErrEmptyCorpus
	}

	texts := models.Texts(docs)
	if fitter, ok := embedder.(embedding.Fitter); ok {
		fitted, err := fitter.Fit(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to fit embedder: %w", err)
		}
		embedder = fitted
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}
	for i := range vectors {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, ErrDimensionMismatch
		}
	}

	owned := make([]models.Document, len(docs))
	copy(owned, docs)

	return &Index{docs: owned, vectors: vectors, embedder: embedder}, nil
}

func (x *Index) Len() int { return len(x.docs) }

// Documents returns a copy of the indexed corpus.
func (x *Index) Documents() []models.Document {
	out := make([]models.Document, len(x.docs))
	copy(out, x.docs)
	return out
}

// VectorOf returns the vector of the i-th document. Callers must not modify it.
func (x *Index) VectorOf(i int) []float32 {
	return x.vectors[i]
}

// Dimension of the stored vectors.
func (x *Index) Dimension() int {
	return len(x.vectors[0])
}
