package scoring

import (
	"math"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Cohesion measures how well-formed a buyer group is: coverage of the
// target role-distribution ranges blended with the mean assignment
// score. A group missing whole required categories scores low even when
// its individual members score well.
func Cohesion(assignments []model.RoleAssignment) float64 {
	if len(assignments) == 0 {
		return 0
	}

	counts := make(map[model.RoleCategory]int, len(roleRanges))
	var scoreSum float64
	for _, a := range assignments {
		counts[a.Role]++
		scoreSum += a.Score
	}

	var covered float64
	for cat, rng := range roleRanges {
		n := counts[cat]
		switch {
		case rng.Min == 0 || n >= rng.Min:
			covered++
		default:
			covered += float64(n) / float64(rng.Min)
		}
	}
	coverage := covered / float64(len(roleRanges))
	meanScore := scoreSum / float64(len(assignments))

	return math.Round((0.6*coverage+0.4*meanScore)*100) / 100
}
