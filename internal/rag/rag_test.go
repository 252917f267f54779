package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fin-advisor/internal/embedding"
	"fin-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEmbedder returns fixed vectors per text; unknown text gets the zero vector.
type mapEmbedder struct {
	vectors map[string][]float32
	dim     int
	err     error
}

func (m *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, m.dim)
		}
	}
	return out, nil
}

func docs(texts ...string) []models.Document {
	out := make([]models.Document, len(texts))
	for i, t := range texts {
		out[i] = models.Document{ID: i, Text: t}
	}
	return out
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 1.0, CosineSimilarity(b, b), 1e-9)
	assert.LessOrEqual(t, CosineSimilarity(a, b), CosineSimilarity(a, a))
	assert.Zero(t, CosineSimilarity(a, []float32{0, 0, 0}))
	assert.Zero(t, CosineSimilarity(a, []float32{1, 2}))
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build(context.Background(), &mapEmbedder{dim: 2}, nil)
	assert.ErrorIs(t, err, embedding.ErrEmptyCorpus)
}

func TestBuild_EmbedderError(t *testing.T) {
	_, err := Build(context.Background(), &mapEmbedder{err: errors.New("boom")}, docs("a"))
	assert.Error(t, err)
}

func TestBuild_FallbackCorpus(t *testing.T) {
	idx, err := Build(context.Background(), embedding.NewTFIDF(), models.FallbackCorpus())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	got, err := idx.Retrieve(context.Background(), "what about index funds?", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{models.FallbackDocumentText}, got)
}

func TestRetrieve_Ranking(t *testing.T) {
	e := &mapEmbedder{dim: 2, vectors: map[string][]float32{
		"bonds":  {1, 0},
		"stocks": {0, 1},
		"mix":    {1, 1},
		"q":      {1, 0.1},
	}}
	idx, err := Build(context.Background(), e, docs("stocks", "mix", "bonds"))
	require.NoError(t, err)

	got, err := idx.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bonds", "mix"}, got)
}

func TestRetrieve_TiesKeepCorpusOrder(t *testing.T) {
	e := &mapEmbedder{dim: 2, vectors: map[string][]float32{
		"first":  {1, 0},
		"second": {2, 0},
		"third":  {0, 1},
		"q":      {1, 0},
	}}
	idx, err := Build(context.Background(), e, docs("third", "first", "second"))
	require.NoError(t, err)

	got, err := idx.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestRetrieve_CountAndUniqueness(t *testing.T) {
	corpus := docs(
		"Bonds rally as yields fall",
		"Tech stocks surge on earnings",
		"REITs offer steady dividend income",
		"Oil prices slip on supply",
		"Central bank holds rates",
	)
	idx, err := Build(context.Background(), embedding.NewTFIDF(), corpus)
	require.NoError(t, err)

	inCorpus := make(map[string]bool)
	for _, d := range corpus {
		inCorpus[d.Text] = true
	}

	for _, q := range []string{"stocks", "bonds and rates", "", "nothing matches here"} {
		for k := 0; k <= 7; k++ {
			t.Run(fmt.Sprintf("%q/k=%d", q, k), func(t *testing.T) {
				got, err := idx.Retrieve(context.Background(), q, k)
				require.NoError(t, err)
				assert.Len(t, got, min(k, len(corpus)))

				seen := make(map[string]bool)
				for _, text := range got {
					assert.True(t, inCorpus[text])
					assert.False(t, seen[text], "duplicate %q", text)
					seen[text] = true
				}
			})
		}
	}
}

func TestRetrieve_QueryEmbedError(t *testing.T) {
	e := &mapEmbedder{dim: 1, vectors: map[string][]float32{"a": {1}}}
	idx, err := Build(context.Background(), e, docs("a"))
	require.NoError(t, err)

	e.err = errors.New("down")
	_, err = idx.Retrieve(context.Background(), "a", 1)
	assert.Error(t, err)
}

func TestIndex_Accessors(t *testing.T) {
	e := &mapEmbedder{dim: 2, vectors: map[string][]float32{"a": {1, 2}, "b": {3, 4}}}
	idx, err := Build(context.Background(), e, docs("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, idx.Dimension())
	assert.Equal(t, []float32{3, 4}, idx.VectorOf(1))
	assert.Equal(t, docs("a", "b"), idx.Documents())
}
