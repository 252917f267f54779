// Package embedding turns text into fixed-length dense vectors.
package embedding

import (
	"context"
	"errors"
)

var ErrEmptyCorpus = errors.New("empty corpus")

// Embedder maps texts to vectors of one fixed dimension.
// The same text must always produce the same vector for a given Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is implemented by embedders whose vector space depends on the corpus.
// Fit returns a frozen Embedder prepared on corpus; the receiver is not modified.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}
