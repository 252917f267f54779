package models

// Recommendation is the structured result of one advice request.
// The category lists come from keyword matching and are best-effort only.
type Recommendation struct {
	Response      string   `json:"response"`
	Summary       string   `json:"summary"`
	Stability     []string `json:"stability,omitempty"`
	HighGrowth    []string `json:"high_growth,omitempty"`
	PassiveIncome []string `json:"passive_income,omitempty"`
	RiskLevel     string   `json:"risk_level,omitempty"`
}
