// Package scoring classifies fused candidates into buyer-group roles and
// assembles a balanced group, and grades the data quality of what the
// providers returned.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Weights controls how much each signal contributes to a category score.
// They must sum to 1.
type Weights struct {
	Title      float64
	Department float64
	Seniority  float64
	Network    float64
}

// DefaultWeights returns the production weighting: the title is the
// strongest signal, raw network size the weakest.
func DefaultWeights() Weights {
	return Weights{Title: 0.4, Department: 0.3, Seniority: 0.2, Network: 0.1}
}

// RoleScorer assigns buyer-group roles.
type RoleScorer struct {
	weights Weights
}

// NewRoleScorer creates a scorer with the given weights. Zero weights use
// the defaults.
func NewRoleScorer(w Weights) *RoleScorer {
	if w.Title+w.Department+w.Seniority+w.Network == 0 {
		w = DefaultWeights()
	}
	return &RoleScorer{weights: w}
}

// scored carries one candidate through classification and balancing.
type scored struct {
	candidate  model.FusedCandidate
	assignment model.RoleAssignment
	denied     bool
}

// Score classifies every candidate, applies the seller's denylist,
// rebalances category counts into their configured ranges and bounds the
// group size. The returned assignments are sorted by score descending.
//
// The denylist is applied before scoring, with one guard: it may not
// empty the blocker category. A procurement or legal gatekeeper the
// seller filtered out is still a gatekeeper the deal has to pass.
func (s *RoleScorer) Score(candidates []model.FusedCandidate, sc model.SellerContext) []model.RoleAssignment {
	if sc.GroupMin <= 0 || sc.GroupMax <= 0 {
		def := model.DefaultSellerContext()
		if sc.GroupMin <= 0 {
			sc.GroupMin = def.GroupMin
		}
		if sc.GroupMax <= 0 {
			sc.GroupMax = def.GroupMax
		}
	}

	pool := make([]*scored, 0, len(candidates))
	for _, c := range candidates {
		entry := s.classify(c, sc)
		entry.denied = denylisted(c.Str(model.FieldTitle), sc.DenylistTitles)
		pool = append(pool, entry)
	}

	kept := make([]*scored, 0, len(pool))
	blockers := 0
	for _, e := range pool {
		if !e.denied {
			kept = append(kept, e)
			if e.assignment.Role == model.RoleBlocker {
				blockers++
			}
		}
	}
	if blockers == 0 {
		// Re-admit the strongest gatekeeper-titled candidate the
		// denylist removed, as a blocker.
		var best *scored
		for _, e := range pool {
			if !e.denied || titleScore(model.RoleBlocker, e.candidate.Str(model.FieldTitle)) == 0 {
				continue
			}
			if best == nil || e.assignment.AllScores[model.RoleBlocker] > best.assignment.AllScores[model.RoleBlocker] {
				best = e
			}
		}
		if best != nil {
			best.assignment.Role = model.RoleBlocker
			best.assignment.Score = best.assignment.AllScores[model.RoleBlocker]
			best.assignment.Rationale = append(best.assignment.Rationale,
				"kept despite denylist: only blocker candidate")
			kept = append(kept, best)
			zap.L().Info("scoring: denylist override for blocker",
				zap.String("candidate", best.assignment.CandidateID))
		}
	}

	kept = s.rebalance(kept)
	kept = bound(kept, sc)

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].assignment.Score != kept[j].assignment.Score {
			return kept[i].assignment.Score > kept[j].assignment.Score
		}
		return kept[i].assignment.CandidateID < kept[j].assignment.CandidateID
	})

	out := make([]model.RoleAssignment, len(kept))
	for i, e := range kept {
		out[i] = e.assignment
	}
	return out
}

// classify scores the candidate against every category and assigns the
// best one.
func (s *RoleScorer) classify(c model.FusedCandidate, sc model.SellerContext) *scored {
	title := c.Str(model.FieldTitle)

	department := c.Str(model.FieldDepartment)
	if department == "" {
		department = InferDepartment(title)
	}
	seniority := c.Str(model.FieldSeniority)
	if seniority == "" {
		seniority = InferSeniority(title)
	}

	all := make(map[model.RoleCategory]float64, len(model.RoleCategories))
	var best model.RoleCategory
	for _, cat := range model.RoleCategories {
		score := s.weights.Title*titleScore(cat, title) +
			s.weights.Department*departmentScore(cat, department, sc.TargetDepartments) +
			s.weights.Seniority*seniorityAffinity[cat][seniority] +
			s.weights.Network*networkScore(c.Int(model.FieldConnections))
		all[cat] = score
		if best == "" || score > all[best] {
			best = cat
		}
	}

	return &scored{
		candidate: c,
		assignment: model.RoleAssignment{
			CandidateID: c.ID,
			Role:        best,
			Score:       all[best],
			AllScores:   all,
			Rationale: []string{
				fmt.Sprintf("title %q matched %s (%.2f)", title, best, titleScore(best, title)),
				fmt.Sprintf("department %s alignment %.2f", department, departmentScore(best, department, sc.TargetDepartments)),
				fmt.Sprintf("seniority %s, %d connections", seniority, c.Int(model.FieldConnections)),
			},
		},
	}
}

// rebalance moves overflow out of over-populated categories into each
// member's best-scoring alternative that still has room, cascading past
// full categories. Overflow no category can take is dropped from the
// group, lowest scores first, so no category ends above its max.
func (s *RoleScorer) rebalance(pool []*scored) []*scored {
	counts := make(map[model.RoleCategory]int)
	for _, e := range pool {
		counts[e.assignment.Role]++
	}

	drop := make(map[*scored]bool)
	for _, cat := range model.RoleCategories {
		limit := roleRanges[cat].Max
		if counts[cat] <= limit {
			continue
		}

		members := byScoreAscending(pool, cat)
		for _, e := range members {
			if counts[cat] <= limit {
				break
			}
			next, score := nextWithRoom(e.assignment, counts)
			if next == "" {
				drop[e] = true
				counts[cat]--
				continue
			}
			counts[cat]--
			counts[next]++
			e.assignment.Role = next
			e.assignment.Score = score
			e.assignment.Rebalanced = true
			e.assignment.Rationale = append(e.assignment.Rationale,
				fmt.Sprintf("rebalanced from %s", cat))
		}
	}

	if len(drop) == 0 {
		return pool
	}
	kept := make([]*scored, 0, len(pool)-len(drop))
	for _, e := range pool {
		if !drop[e] {
			kept = append(kept, e)
		}
	}
	return kept
}

// nextWithRoom returns the best-scoring category other than the current
// assignment that is still under its configured max. Ties break on
// category name for determinism.
func nextWithRoom(ra model.RoleAssignment, counts map[model.RoleCategory]int) (model.RoleCategory, float64) {
	var best model.RoleCategory
	var bestScore float64
	for cat, score := range ra.AllScores {
		if cat == ra.Role || score <= 0 {
			continue
		}
		if counts[cat] >= roleRanges[cat].Max {
			continue
		}
		if best == "" || score > bestScore || (score == bestScore && cat < best) {
			best = cat
			bestScore = score
		}
	}
	return best, bestScore
}

// bound caps the group at GroupMax, dropping the lowest-scored members
// first while keeping each category at or above its configured minimum.
func bound(pool []*scored, sc model.SellerContext) []*scored {
	if len(pool) <= sc.GroupMax {
		return pool
	}

	counts := make(map[model.RoleCategory]int)
	for _, e := range pool {
		counts[e.assignment.Role]++
	}

	ordered := make([]*scored, len(pool))
	copy(ordered, pool)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].assignment.Score < ordered[j].assignment.Score
	})

	drop := make(map[*scored]bool)
	remaining := len(pool)
	for _, e := range ordered {
		if remaining <= sc.GroupMax {
			break
		}
		if counts[e.assignment.Role] <= roleRanges[e.assignment.Role].Min {
			continue
		}
		drop[e] = true
		counts[e.assignment.Role]--
		remaining--
	}
	// Category minimums may make the cap unreachable; drop strictly by
	// score if so.
	for _, e := range ordered {
		if remaining <= sc.GroupMax {
			break
		}
		if drop[e] {
			continue
		}
		drop[e] = true
		remaining--
	}

	kept := make([]*scored, 0, remaining)
	for _, e := range pool {
		if !drop[e] {
			kept = append(kept, e)
		}
	}
	return kept
}

func titleScore(cat model.RoleCategory, title string) float64 {
	lower := strings.ToLower(title)
	kw := titleKeywords[cat]
	for _, k := range kw.primary {
		if containsWord(lower, k) {
			return 1.0
		}
	}
	for _, k := range kw.secondary {
		if containsWord(lower, k) {
			return 0.6
		}
	}
	return 0
}

func departmentScore(cat model.RoleCategory, department string, targets []string) float64 {
	score, ok := departmentAffinity[cat][department]
	if !ok {
		score = 0.3
	}
	for _, t := range targets {
		if strings.EqualFold(t, department) {
			score += 0.2
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// networkScore grades connection counts on the thresholds that separate
// a dormant profile from an actively networked one.
func networkScore(connections int) float64 {
	switch {
	case connections > 500:
		return 1.0
	case connections > 200:
		return 0.7
	case connections > 50:
		return 0.4
	default:
		return 0.2
	}
}

func denylisted(title string, denylist []string) bool {
	lower := strings.ToLower(title)
	for _, d := range denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// byScoreAscending returns the pool members currently assigned to cat,
// lowest score first.
func byScoreAscending(pool []*scored, cat model.RoleCategory) []*scored {
	var members []*scored
	for _, e := range pool {
		if e.assignment.Role == cat {
			members = append(members, e)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].assignment.Score < members[j].assignment.Score
	})
	return members
}
