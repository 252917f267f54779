package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fin-advisor/internal/models"
	"fin-advisor/internal/prompt"
	"fin-advisor/internal/repository"
	"fin-advisor/internal/session"

	"go.uber.org/zap"
)

var ErrInvalidQuery = errors.New("query must not be empty")

// CorpusIndex is the retrieval side of the pipeline.
type CorpusIndex interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
	Refresh(ctx context.Context) (int, error)
}

// ProfileReader looks up the stored profile for a user.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
}

// AdviceService runs one request through merge, retrieve, compose, generate
// and normalize, in that order.
type AdviceService struct {
	sessions  session.Store
	corpus    CorpusIndex
	profiles  ProfileReader
	composer  *prompt.Composer
	generator Generator
	publisher Publisher
	logger    *zap.Logger
}

func NewAdviceService(
	sessions session.Store,
	corpus CorpusIndex,
	profiles ProfileReader,
	composer *prompt.Composer,
	generator Generator,
	publisher Publisher,
	logger *zap.Logger,
) *AdviceService {
	return &AdviceService{
		sessions:  sessions,
		corpus:    corpus,
		profiles:  profiles,
		composer:  composer,
		generator: generator,
		publisher: publisher,
		logger:    logger,
	}
}

// Answer resolves query against the user's session fragment and stored profile.
func (s *AdviceService) Answer(ctx context.Context, userID, query string) (*models.Recommendation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}

	effective := s.sessions.Merge(userID, query)
	profile := s.lookupProfile(ctx, userID)

	return s.run(ctx, userID, effective, profile)
}

// Recommend asks for options matching an explicit profile. The stored profile
// and the session fragment are left alone.
func (s *AdviceService) Recommend(ctx context.Context, userID string, investmentType models.InvestmentType, level models.ExperienceLevel) (*models.Recommendation, error) {
	if !investmentType.Valid() || !level.Valid() {
		return nil, ErrInvalidProfile
	}

	query := fmt.Sprintf("Give me the best %s investment options for a %s investor.", investmentType, level)
	profile := &models.Profile{
		UserID:          userID,
		InvestmentType:  investmentType,
		ExperienceLevel: level,
	}
	return s.run(ctx, userID, query, profile)
}

// RefreshCorpus rebuilds the retrieval index and reports its size.
func (s *AdviceService) RefreshCorpus(ctx context.Context) (int, error) {
	return s.corpus.Refresh(ctx)
}

func (s *AdviceService) run(ctx context.Context, userID, query string, profile *models.Profile) (*models.Recommendation, error) {
	docs, err := s.corpus.Retrieve(ctx, query)
	if err != nil {
		// nothing sensible can be answered without the query's embedding
		s.logger.Error("Retrieval failed", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("%w: retrieval: %v", ErrModelUnavailable, err)
	}

	promptText := s.composer.Compose(query, profile, docs)

	raw, err := s.generator.Generate(ctx, promptText)
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		return nil, err
	}

	rec := Normalize(&raw)

	s.logger.Info("Recommendation generated",
		zap.String("user_id", userID),
		zap.Bool("has_profile", profile != nil),
		zap.Int("context_documents", len(docs)),
		zap.Bool("has_summary", rec.Summary != ""),
	)

	s.publish(userID, query, rec)
	return rec, nil
}

// lookupProfile treats every store failure as "no profile".
func (s *AdviceService) lookupProfile(ctx context.Context, userID string) *models.Profile {
	if s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			s.logger.Warn("Profile unavailable, answering without it",
				zap.Error(err),
				zap.String("user_id", userID),
			)
		}
		return nil
	}
	return profile
}

type recommendationEvent struct {
	Query          string                 `json:"query"`
	Recommendation *models.Recommendation `json:"recommendation"`
}

func (s *AdviceService) publish(userID, query string, rec *models.Recommendation) {
	if s.publisher == nil {
		return
	}
	payload, err := EncodeEvent(EventRecommendation, recommendationEvent{Query: query, Recommendation: rec})
	if err != nil {
		s.logger.Error("Failed to encode recommendation event", zap.Error(err))
		return
	}
	s.publisher.Publish(userID, payload)
}
