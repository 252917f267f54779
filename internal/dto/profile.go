package dto

type ProfileResponse struct {
	InvestmentType  string `json:"investment_type"`
	ExperienceLevel string `json:"experience_level"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// UpdateProfileRequest is a partial update, omitted fields are kept.
type UpdateProfileRequest struct {
	InvestmentType  *string `json:"investment_type"`
	ExperienceLevel *string `json:"experience_level"`
}
