package models

import "time"

type InvestmentType string

const (
	InvestmentShortTerm InvestmentType = "short-term"
	InvestmentLongTerm  InvestmentType = "long-term"
)

func (t InvestmentType) Valid() bool {
	return t == InvestmentShortTerm || t == InvestmentLongTerm
}

type ExperienceLevel string

const (
	ExperienceBeginner    ExperienceLevel = "beginner"
	ExperienceExperienced ExperienceLevel = "experienced"
)

func (l ExperienceLevel) Valid() bool {
	return l == ExperienceBeginner || l == ExperienceExperienced
}

// Profile holds the investment preferences stored for a user.
type Profile struct {
	UserID          string          `db:"user_id" json:"user_id"`
	InvestmentType  InvestmentType  `db:"investment_type" json:"investment_type"`
	ExperienceLevel ExperienceLevel `db:"experience_level" json:"experience_level"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	InvestmentType  *InvestmentType
	ExperienceLevel *ExperienceLevel
}

func (u ProfileUpdate) Empty() bool {
	return u.InvestmentType == nil && u.ExperienceLevel == nil
}

// ProfileChange is emitted by the profile store after every write.
type ProfileChange struct {
	UserID          string          `json:"user_id"`
	InvestmentType  InvestmentType  `json:"investment_type"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
