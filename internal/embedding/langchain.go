package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Remote wraps a langchaingo embedder backed by an OpenAI-compatible endpoint.
// Every call is bounded by timeout.
type Remote struct {
	embedder embeddings.Embedder
	timeout  time.Duration
}

const defaultRemoteTimeout = 30 * time.Second

// NewOpenAI builds a remote embedder. An empty baseURL uses the OpenAI default
// and a non-positive timeout falls back to 30s.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) (*Remote, error) {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &Remote{embedder: embedder, timeout: timeout}, nil
}

func (r *Remote) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if len(texts) == 1 {
		vec, err := r.embedder.EmbedQuery(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	}
	return r.embedder.EmbedDocuments(ctx, texts)
}
