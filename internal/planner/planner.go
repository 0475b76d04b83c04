// Package planner turns an enrichment request into the ordered set of
// provider calls the tier requires, each carrying a cost estimate so the
// ledger can authorize spend before any call is issued.
package planner

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Provider call operations. Provider names match the adapter registry.
const (
	OpResolveCompany  = "resolve_company"
	OpSearchEmployees = "search_employees"
	OpFindContact     = "find_contact"
	OpEnrichPerson    = "enrich_person"
	OpDeepResearch    = "deep_research"

	ProviderCompanyGraph  = "companygraph"
	ProviderContactVerify = "contactverify"
	ProviderPeopleData    = "peopledata"
	ProviderAIResearch    = "airesearch"
)

// ProviderCall is one planned unit of provider work. PerCandidate calls
// are templates the orchestrator instantiates once per selected
// candidate; their estimate already covers the expected group size.
type ProviderCall struct {
	Provider     string             `json:"provider"`
	Operation    string             `json:"operation"`
	Role         model.RoleCategory `json:"role,omitempty"`
	Titles       []string           `json:"titles,omitempty"`
	PerCandidate bool               `json:"per_candidate,omitempty"`
	Priority     int                `json:"priority"`
	EstimateUSD  float64            `json:"estimate_usd"`
	// UnitUSD is the estimate for a single issuance. It equals
	// EstimateUSD except for per-candidate calls, whose EstimateUSD
	// covers the expected group size.
	UnitUSD float64 `json:"unit_usd"`
}

// Plan is the full call schedule for one request.
type Plan struct {
	RequestID   string         `json:"request_id"`
	Tier        model.Tier     `json:"tier"`
	Calls       []ProviderCall `json:"calls"`
	EstimateUSD float64        `json:"estimate_usd"`
	// Trimmed is set when the per-request cost cap forced calls to be
	// dropped; the orchestrator surfaces it as a degradation warning.
	Trimmed bool `json:"trimmed,omitempty"`
}

// CostTable holds per-operation unit cost estimates. Actual charges may
// differ (pagination, provider-side repricing); the ledger records
// actuals, these only gate issuance.
type CostTable struct {
	CompanySearchUSD  float64
	EmployeeSearchUSD float64
	ContactFindUSD    float64
	PersonEnrichUSD   float64
	ResearchUSD       float64
}

// DefaultCostTable returns list-price estimates for the wired providers.
func DefaultCostTable() CostTable {
	return CostTable{
		CompanySearchUSD:  0.05,
		EmployeeSearchUSD: 0.05,
		ContactFindUSD:    0.0198,
		PersonEnrichUSD:   0.03,
		ResearchUSD:       0.08,
	}
}

// Planner builds call schedules from the pattern tables and cost table.
type Planner struct {
	patterns *Patterns
	costs    CostTable
	capUSD   float64
	expected int // candidates a per-candidate estimate assumes
}

// New creates a planner. capUSD is the per-request cost cap; expected is
// the group size per-candidate estimates assume (0 uses the default
// group maximum).
func New(patterns *Patterns, costs CostTable, capUSD float64, expected int) *Planner {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if expected <= 0 {
		expected = model.DefaultSellerContext().GroupMax
	}
	return &Planner{patterns: patterns, costs: costs, capUSD: capUSD, expected: expected}
}

// Plan builds the call schedule for the request at the given tier. When
// the schedule exceeds the per-request cap, lowest-priority calls are
// dropped until it fits and Trimmed is set.
func (p *Planner) Plan(req model.EnrichmentRequest, tier model.Tier) (*Plan, error) {
	calls := []ProviderCall{{
		Provider:    ProviderCompanyGraph,
		Operation:   OpResolveCompany,
		Priority:    0,
		EstimateUSD: p.costs.CompanySearchUSD,
		UnitUSD:     p.costs.CompanySearchUSD,
	}}

	if req.Role != "" {
		// A specific role was asked for: one search covering every
		// titled variant, so keyword matching does not miss spellings.
		calls = append(calls, ProviderCall{
			Provider:    ProviderCompanyGraph,
			Operation:   OpSearchEmployees,
			Titles:      p.patterns.ExpandRole(req.Role),
			Priority:    1,
			EstimateUSD: p.costs.EmployeeSearchUSD,
			UnitUSD:     p.costs.EmployeeSearchUSD,
		})
	} else {
		// Buyer-group discovery: one micro-targeted search per role
		// category. Broad unscoped queries over-return low-relevance
		// candidates and waste downstream scoring work.
		for _, cat := range model.RoleCategories {
			calls = append(calls, ProviderCall{
				Provider:    ProviderCompanyGraph,
				Operation:   OpSearchEmployees,
				Role:        cat,
				Titles:      p.patterns.Categories[cat],
				Priority:    categoryPriority(cat),
				EstimateUSD: p.costs.EmployeeSearchUSD,
				UnitUSD:     p.costs.EmployeeSearchUSD,
			})
		}
	}

	if tier.Rank() >= model.TierEnrich.Rank() {
		calls = append(calls,
			ProviderCall{
				Provider:     ProviderContactVerify,
				Operation:    OpFindContact,
				PerCandidate: true,
				Priority:     4,
				EstimateUSD:  p.costs.ContactFindUSD * float64(p.expected),
				UnitUSD:      p.costs.ContactFindUSD,
			},
			ProviderCall{
				Provider:     ProviderPeopleData,
				Operation:    OpEnrichPerson,
				PerCandidate: true,
				Priority:     5,
				EstimateUSD:  p.costs.PersonEnrichUSD * float64(p.expected),
				UnitUSD:      p.costs.PersonEnrichUSD,
			},
		)
	}

	if tier == model.TierDeepResearch {
		calls = append(calls, ProviderCall{
			Provider:     ProviderAIResearch,
			Operation:    OpDeepResearch,
			PerCandidate: true,
			Priority:     6,
			EstimateUSD:  p.costs.ResearchUSD * float64(p.expected),
			UnitUSD:      p.costs.ResearchUSD,
		})
	}

	plan := &Plan{
		RequestID:   req.ID,
		Tier:        tier,
		Calls:       calls,
		EstimateUSD: Total(calls),
	}

	capUSD := p.capUSD
	if req.MaxCostUSD > 0 && req.MaxCostUSD < capUSD {
		capUSD = req.MaxCostUSD
	}
	if capUSD > 0 && plan.EstimateUSD > capUSD {
		plan.Calls, plan.Trimmed = trim(plan.Calls, capUSD)
		plan.EstimateUSD = Total(plan.Calls)
		zap.L().Warn("planner: schedule trimmed to cost cap",
			zap.String("request", req.ID),
			zap.Float64("cap_usd", capUSD),
			zap.Float64("estimate_usd", plan.EstimateUSD),
			zap.Int("calls", len(plan.Calls)),
		)
	}
	return plan, nil
}

// Total sums the estimates of a call schedule.
func Total(calls []ProviderCall) float64 {
	var sum float64
	for _, c := range calls {
		sum += c.EstimateUSD
	}
	return sum
}

// trim drops calls in descending priority order until the schedule fits
// under capUSD. The company resolution call (priority 0) is never
// dropped; without it nothing downstream can run.
func trim(calls []ProviderCall, capUSD float64) ([]ProviderCall, bool) {
	ordered := make([]ProviderCall, len(calls))
	copy(ordered, calls)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	kept := ordered[:0]
	var sum float64
	trimmed := false
	for _, c := range ordered {
		if c.Priority > 0 && sum+c.EstimateUSD > capUSD {
			trimmed = true
			continue
		}
		sum += c.EstimateUSD
		kept = append(kept, c)
	}
	return kept, trimmed
}

// categoryPriority orders discovery searches so cap trimming keeps the
// categories a usable group cannot exist without.
func categoryPriority(cat model.RoleCategory) int {
	switch cat {
	case model.RoleDecisionMaker, model.RoleChampion:
		return 1
	case model.RoleStakeholder:
		return 2
	default:
		return 3
	}
}
