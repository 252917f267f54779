package dto

type AskRequest struct {
	Query string `json:"query"`
}

type RecommendRequest struct {
	InvestmentType  string `json:"investment_type"`
	ExperienceLevel string `json:"experience_level"`
}

// RecommendationResponse mirrors models.Recommendation on the wire.
type RecommendationResponse struct {
	Response      string   `json:"response"`
	Summary       string   `json:"summary"`
	Stability     []string `json:"stability,omitempty"`
	HighGrowth    []string `json:"high_growth,omitempty"`
	PassiveIncome []string `json:"passive_income,omitempty"`
	RiskLevel     string   `json:"risk_level,omitempty"`
}

type CorpusResponse struct {
	Documents int `json:"documents"`
}
