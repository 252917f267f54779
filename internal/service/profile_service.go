package service

import (
	"context"
	"errors"
	"time"

	"fin-advisor/internal/models"

	"go.uber.org/zap"
)

var (
	ErrInvalidProfile     = errors.New("invalid profile values")
	ErrEmptyProfileUpdate = errors.New("profile update has no fields")
)

const defaultWatchRetry = 5 * time.Second

// ProfileStore is the persistence side of user profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
	Listen(ctx context.Context, fn func(models.ProfileChange)) error
}

type ProfileService struct {
	store     ProfileStore
	publisher Publisher
	retry     time.Duration
	logger    *zap.Logger
}

func NewProfileService(store ProfileStore, publisher Publisher, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:     store,
		publisher: publisher,
		retry:     defaultWatchRetry,
		logger:    logger,
	}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.store.Get(ctx, userID)
}

// Update applies a partial update after checking the supplied values.
func (s *ProfileService) Update(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	if update.Empty() {
		return nil, ErrEmptyProfileUpdate
	}
	if update.InvestmentType != nil && !update.InvestmentType.Valid() {
		return nil, ErrInvalidProfile
	}
	if update.ExperienceLevel != nil && !update.ExperienceLevel.Valid() {
		return nil, ErrInvalidProfile
	}

	profile, err := s.store.Upsert(ctx, userID, update)
	if err != nil {
		s.logger.Error("Failed to update profile", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}
	return profile, nil
}

// Watch forwards every stored profile change to the owner's live connections.
// It reconnects after listener failures and returns only when ctx is done.
func (s *ProfileService) Watch(ctx context.Context) {
	for {
		err := s.store.Listen(ctx, s.forward)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Profile listener stopped, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", s.retry),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *ProfileService) forward(change models.ProfileChange) {
	payload, err := EncodeEvent(EventProfile, change)
	if err != nil {
		s.logger.Error("Failed to encode profile change", zap.Error(err))
		return
	}
	// a user without live connections simply receives nothing
	s.publisher.Publish(change.UserID, payload)
}
