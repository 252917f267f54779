package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fin-advisor/internal/models"
	"fin-advisor/pkg/config"

	"go.uber.org/zap"
)

const (
	defaultNewsTimeout = 10 * time.Second
	maxNewsDocuments   = 10
	maxNewsBodyBytes   = 4 << 20
)

var errUnexpectedFeedShape = errors.New("news feed did not return a list")

type newsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

// NewsService pulls the retrieval corpus from a Finnhub-style news endpoint.
type NewsService struct {
	httpClient *http.Client
	config     *config.NewsConfig
	timeout    time.Duration
	logger     *zap.Logger
}

func NewNewsService(cfg *config.NewsConfig, logger *zap.Logger) *NewsService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultNewsTimeout
	}
	return &NewsService{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		timeout:    timeout,
		logger:     logger,
	}
}

// Fetch returns at most the configured number of documents (never more than 10).
// It never fails: any problem with the feed yields the single fallback document.
func (s *NewsService) Fetch(ctx context.Context) []models.Document {
	items, err := s.fetchItems(ctx)
	if err != nil {
		s.logger.Warn("News feed unavailable, using fallback corpus", zap.Error(err))
		return models.FallbackCorpus()
	}

	docs := s.toDocuments(items)
	if len(docs) == 0 {
		s.logger.Warn("News feed returned no usable articles, using fallback corpus")
		return models.FallbackCorpus()
	}

	s.logger.Info("News corpus fetched", zap.Int("documents", len(docs)))
	return docs
}

func (s *NewsService) fetchItems(ctx context.Context) ([]newsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feedURL, err := url.Parse(s.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid news url: %w", err)
	}
	q := feedURL.Query()
	q.Set("category", "general")
	if s.config.APIKey != "" {
		q.Set("token", s.config.APIKey)
	}
	feedURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNewsBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read news response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	// Finnhub reports quota and key problems as a JSON object
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errUnexpectedFeedShape
	}

	var items []newsItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}
	return items, nil
}

func (s *NewsService) toDocuments(items []newsItem) []models.Document {
	limit := s.config.Limit
	if limit <= 0 || limit > maxNewsDocuments {
		limit = maxNewsDocuments
	}

	docs := make([]models.Document, 0, limit)
	for _, item := range items {
		if len(docs) == limit {
			break
		}
		headline := strings.TrimSpace(item.Headline)
		summary := strings.TrimSpace(item.Summary)
		if headline == "" && summary == "" {
			continue
		}
		docs = append(docs, models.Document{
			ID:   len(docs),
			Text: strings.TrimSpace(headline + ". " + summary),
		})
	}
	return docs
}
