package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fin-advisor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileChannel is the NOTIFY channel fed by the profiles trigger.
const ProfileChannel = "profile_changes"

// nil fields of a partial update keep the stored value on conflict
const upsertProfileSuffix = `ON CONFLICT (user_id) DO UPDATE SET
	investment_type = CASE WHEN ? THEN EXCLUDED.investment_type ELSE profiles.investment_type END,
	experience_level = CASE WHEN ? THEN EXCLUDED.experience_level ELSE profiles.experience_level END,
	updated_at = EXCLUDED.updated_at
RETURNING user_id, investment_type, experience_level, updated_at`

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := squirrel.Select("user_id", "investment_type", "experience_level", "updated_at").
		From("profiles").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var p models.Profile
	err = r.db.QueryRow(ctx, sql, args...).Scan(&p.UserID, &p.InvestmentType, &p.ExperienceLevel, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert applies a partial update, creating the row when the user has none yet.
func (r *ProfileRepository) Upsert(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	var investment, experience string
	if update.InvestmentType != nil {
		investment = string(*update.InvestmentType)
	}
	if update.ExperienceLevel != nil {
		experience = string(*update.ExperienceLevel)
	}

	query := squirrel.Insert("profiles").
		Columns("user_id", "investment_type", "experience_level", "updated_at").
		Values(userID, investment, experience, time.Now().UTC()).
		Suffix(upsertProfileSuffix, update.InvestmentType != nil, update.ExperienceLevel != nil).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var p models.Profile
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&p.UserID, &p.InvestmentType, &p.ExperienceLevel, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Listen holds one pooled connection on LISTEN and calls fn for every profile
// change until ctx ends or the connection fails. Malformed payloads are skipped.
func (r *ProfileRepository) Listen(ctx context.Context, fn func(models.ProfileChange)) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ProfileChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ProfileChannel, err)
	}

	r.logger.Info("Listening for profile changes", zap.String("channel", ProfileChannel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		change, err := DecodeProfileChange(notification.Payload)
		if err != nil {
			r.logger.Warn("Skipping malformed profile notification", zap.Error(err))
			continue
		}
		fn(change)
	}
}

// DecodeProfileChange parses the JSON payload emitted by the profiles trigger.
func DecodeProfileChange(payload string) (models.ProfileChange, error) {
	var change models.ProfileChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return change, err
	}
	if change.UserID == "" {
		return change, errors.New("notification without user_id")
	}
	return change, nil
}
