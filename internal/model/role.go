package model

// RoleCategory classifies a buyer-group member's function in a purchase
// decision.
type RoleCategory string

const (
	RoleDecisionMaker RoleCategory = "decision_maker"
	RoleChampion      RoleCategory = "champion"
	RoleStakeholder   RoleCategory = "stakeholder"
	RoleBlocker       RoleCategory = "blocker"
	RoleIntroducer    RoleCategory = "introducer"
)

// RoleCategories lists all categories in display order.
var RoleCategories = []RoleCategory{
	RoleDecisionMaker,
	RoleChampion,
	RoleStakeholder,
	RoleBlocker,
	RoleIntroducer,
}

// RoleAssignment attaches a role classification to a fused candidate.
// Re-scoring produces a new assignment; assignments are never mutated.
type RoleAssignment struct {
	CandidateID string                   `json:"candidate_id"`
	Role        RoleCategory             `json:"role"`
	Score       float64                  `json:"score"` // 0-1
	AllScores   map[RoleCategory]float64 `json:"all_scores"`
	Rationale   []string                 `json:"rationale"` // which signals drove the classification
	Rebalanced  bool                     `json:"rebalanced,omitempty"`
}

// SecondBest returns the highest-scoring category other than the assigned
// role, used by the rebalancing pass.
func (ra RoleAssignment) SecondBest() (RoleCategory, float64) {
	var best RoleCategory
	bestScore := -1.0
	for cat, s := range ra.AllScores {
		if cat == ra.Role {
			continue
		}
		if s > bestScore {
			best, bestScore = cat, s
		}
	}
	return best, bestScore
}
