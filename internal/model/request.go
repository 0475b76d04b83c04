package model

import (
	"strings"
	"time"
)

// Tier selects how much external data a discovery request is allowed to
// fetch. Each tier is a strict superset of the work of the previous one.
type Tier string

const (
	// TierIdentify resolves names, titles and departments only.
	TierIdentify Tier = "identify"
	// TierEnrich adds verified contact details per selected candidate.
	TierEnrich Tier = "enrich"
	// TierDeepResearch adds AI-derived narrative intelligence.
	TierDeepResearch Tier = "deep_research"
)

// ParseTier normalizes a tier string. Unknown values default to identify.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TierEnrich):
		return TierEnrich
	case string(TierDeepResearch), "deep-research", "deepresearch":
		return TierDeepResearch
	default:
		return TierIdentify
	}
}

// Rank orders tiers by the amount of work they imply.
func (t Tier) Rank() int {
	switch t {
	case TierDeepResearch:
		return 3
	case TierEnrich:
		return 2
	default:
		return 1
	}
}

// Deadline returns the target latency budget for the tier.
func (t Tier) Deadline() time.Duration {
	switch t {
	case TierDeepResearch:
		return 2 * time.Minute
	case TierEnrich:
		return 30 * time.Second
	default:
		return 5 * time.Second
	}
}

// EnrichmentRequest describes one buyer-group discovery request. It is
// immutable once created; a new request produces a new result.
type EnrichmentRequest struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	CompanyName string  `json:"company_name"`
	Website     string  `json:"website,omitempty"`
	Role        string  `json:"role,omitempty"`
	PersonName  string  `json:"person_name,omitempty"`
	Tier        Tier    `json:"tier"`
	MaxCostUSD  float64 `json:"max_cost_usd,omitempty"` // 0 = tenant default
	CreatedAt   time.Time `json:"created_at"`
}

// RequestState tracks which pipeline stage a request has reached, so a
// deadline can snapshot whatever stage completed instead of relying on
// ad hoc flags.
type RequestState string

const (
	StatePlanned  RequestState = "planned"
	StateFetching RequestState = "fetching"
	StateFusing   RequestState = "fusing"
	StateScoring  RequestState = "scoring"
	StateDone     RequestState = "done"
	StatePartial  RequestState = "partial"
	StateFailed   RequestState = "failed"
)

// validTransitions encodes the request lifecycle
// planned → fetching → fusing → scoring → done | partial | failed.
var validTransitions = map[RequestState][]RequestState{
	StatePlanned:  {StateFetching, StateFailed},
	StateFetching: {StateFusing, StatePartial, StateFailed},
	StateFusing:   {StateScoring, StatePartial, StateFailed},
	StateScoring:  {StateDone, StatePartial, StateFailed},
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step.
func (s RequestState) CanTransition(next RequestState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the request lifecycle.
func (s RequestState) Terminal() bool {
	return s == StateDone || s == StatePartial || s == StateFailed
}

// SellerContext describes the selling motion used by role scoring:
// which departments the seller targets and which titles are never
// relevant regardless of seniority.
type SellerContext struct {
	TargetDepartments []string `json:"target_departments" yaml:"target_departments"`
	DenylistTitles    []string `json:"denylist_titles" yaml:"denylist_titles"`
	GroupMin          int      `json:"group_min" yaml:"group_min"`
	GroupMax          int      `json:"group_max" yaml:"group_max"`
}

// DefaultSellerContext returns the selling context used when the caller
// supplies none.
func DefaultSellerContext() SellerContext {
	return SellerContext{
		TargetDepartments: []string{"Sales", "Revenue Operations", "Marketing", "Finance", "Executive"},
		GroupMin:          8,
		GroupMax:          15,
	}
}
