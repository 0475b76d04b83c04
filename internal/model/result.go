package model

import "time"

// Member pairs a fused candidate with its role assignment and quality
// score inside a buyer-group result.
type Member struct {
	Candidate FusedCandidate `json:"candidate"`
	Role      RoleAssignment `json:"role"`
	Quality   QualityScore   `json:"quality"`
}

// BuyerGroupResult is the immutable output of one discovery request.
type BuyerGroupResult struct {
	RequestID     string               `json:"request_id"`
	TenantID      string               `json:"tenant_id"`
	CompanyName   string               `json:"company_name"`
	Tier          Tier                 `json:"tier"` // tier actually executed
	State         RequestState         `json:"state"`
	Members       []Member             `json:"members"`
	CohesionScore float64              `json:"cohesion_score"`
	TotalCostUSD  float64              `json:"total_cost_usd"`
	Elapsed       time.Duration        `json:"elapsed"`
	Degraded      bool                 `json:"degraded"`
	Partial       bool                 `json:"partial"`
	SourcesUsed   []string             `json:"sources_used"`
	Warnings      []string             `json:"warnings,omitempty"`
	CompletedAt   time.Time            `json:"completed_at"`
}

// RoleDistribution counts members per role category.
func (r *BuyerGroupResult) RoleDistribution() map[RoleCategory]int {
	dist := make(map[RoleCategory]int, len(RoleCategories))
	for _, m := range r.Members {
		dist[m.Role.Role]++
	}
	return dist
}
