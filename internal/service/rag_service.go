package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fin-advisor/internal/embedding"
	"fin-advisor/internal/models"
	"fin-advisor/internal/rag"
	"fin-advisor/pkg/config"

	"go.uber.org/zap"
)

// ErrCorpusNotLoaded is returned by Retrieve before the first successful Refresh.
var ErrCorpusNotLoaded = errors.New("corpus not loaded")

// CorpusSource supplies the documents the index is built from.
type CorpusSource interface {
	Fetch(ctx context.Context) []models.Document
}

// RAGService owns the retrieval index. Readers see either the old or the new
// index, never a partially built one.
type RAGService struct {
	source   CorpusSource
	embedder embedding.Embedder
	index    atomic.Pointer[rag.Index]
	config   *config.RAGConfig
	logger   *zap.Logger
}

func NewRAGService(source CorpusSource, embedder embedding.Embedder, cfg *config.RAGConfig, logger *zap.Logger) *RAGService {
	return &RAGService{
		source:   source,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// NewEmbedder picks the embedding backend named by cfg.Embedder.
func NewEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.RAG.Embedder {
	case "", "tfidf":
		return embedding.NewTFIDF(), nil
	case "openai":
		timeout := cfg.RAG.EmbedTimeout
		if timeout <= 0 {
			timeout = cfg.LLM.Timeout
		}
		return embedding.NewOpenAI(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.BaseURL, cfg.RAG.EmbeddingModel, timeout)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.RAG.Embedder)
	}
}

// Refresh fetches the corpus and swaps in a freshly built index. On failure
// the previous index stays in place.
func (s *RAGService) Refresh(ctx context.Context) (int, error) {
	start := time.Now()
	docs := s.source.Fetch(ctx)

	index, err := rag.Build(ctx, s.embedder, docs)
	if err != nil {
		s.logger.Error("Failed to build retrieval index",
			zap.Error(err),
			zap.Int("documents", len(docs)),
		)
		return 0, fmt.Errorf("failed to build index: %w", err)
	}

	s.index.Store(index)
	s.logger.Info("Retrieval index refreshed",
		zap.Int("documents", index.Len()),
		zap.Int("dimension", index.Dimension()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return index.Len(), nil
}

// Retrieve returns the texts of the TopK documents closest to query.
func (s *RAGService) Retrieve(ctx context.Context, query string) ([]string, error) {
	index := s.index.Load()
	if index == nil {
		return nil, ErrCorpusNotLoaded
	}
	return index.Retrieve(ctx, query, s.topK())
}

// Len reports the size of the current corpus, 0 before the first refresh.
func (s *RAGService) Len() int {
	if index := s.index.Load(); index != nil {
		return index.Len()
	}
	return 0
}

// RunRefresher rebuilds the index every RefreshInterval until ctx is done.
// It returns immediately when periodic refresh is disabled.
func (s *RAGService) RunRefresher(ctx context.Context) {
	if s.config.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("Periodic corpus refresh failed, keeping previous index", zap.Error(err))
			}
		}
	}
}

func (s *RAGService) topK() int {
	if s.config.TopK > 0 {
		return s.config.TopK
	}
	return 2
}
