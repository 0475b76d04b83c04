package planner

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Patterns holds the title vocabulary the planner searches with. Category
// patterns drive buyer-group discovery; variants expand a caller-supplied
// role into the titled spellings providers actually index.
type Patterns struct {
	Categories map[model.RoleCategory][]string `yaml:"categories"`
	Variants   map[string][]string             `yaml:"variants"`
}

// DefaultPatterns returns the built-in title tables. A YAML file merged
// over them only has to list the entries it changes.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Categories: map[model.RoleCategory][]string{
			model.RoleDecisionMaker: {
				"Chief Executive Officer", "Chief Financial Officer",
				"Chief Operating Officer", "President", "Owner",
				"Founder", "Managing Director",
			},
			model.RoleChampion: {
				"Vice President", "Senior Vice President", "Head of",
				"Senior Director",
			},
			model.RoleStakeholder: {
				"Director", "Senior Manager", "Manager", "Team Lead",
			},
			model.RoleBlocker: {
				"Chief Procurement Officer", "Procurement",
				"Chief Information Security Officer", "General Counsel",
				"Chief Legal Officer", "Compliance",
			},
			model.RoleIntroducer: {
				"Business Development", "Partnerships",
				"Account Executive", "Customer Success",
				"Sales Development",
			},
		},
		Variants: map[string][]string{
			"ceo":  {"Chief Executive Officer", "President", "Founder", "Managing Director"},
			"cfo":  {"Chief Financial Officer", "VP Finance", "Finance Director", "Head of Finance"},
			"coo":  {"Chief Operating Officer", "VP Operations", "Operations Director", "Head of Operations"},
			"cto":  {"Chief Technology Officer", "VP Engineering", "Engineering Director", "Head of Engineering"},
			"cio":  {"Chief Information Officer", "VP Information Technology", "IT Director", "Head of IT"},
			"cmo":  {"Chief Marketing Officer", "VP Marketing", "Marketing Director", "Head of Marketing"},
			"cro":  {"Chief Revenue Officer", "VP Sales", "Sales Director", "Head of Revenue"},
			"chro": {"Chief Human Resources Officer", "VP People", "HR Director", "Head of People"},
		},
	}
}

// LoadPatterns reads a pattern table from a YAML file and merges it over
// the defaults. An empty path returns the defaults unchanged.
func LoadPatterns(path string) (*Patterns, error) {
	p := DefaultPatterns()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "planner: read patterns %s", path)
	}

	var wrapper struct {
		Patterns Patterns `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "planner: parse patterns")
	}

	for cat, titles := range wrapper.Patterns.Categories {
		p.Categories[cat] = titles
	}
	for role, variants := range wrapper.Patterns.Variants {
		p.Variants[strings.ToLower(role)] = variants
	}
	return p, nil
}

// ExpandRole returns the title variants to search for a requested role,
// always including the role as written. "CFO" expands to Chief Financial
// Officer, VP Finance, Finance Director, Head of Finance.
func (p *Patterns) ExpandRole(role string) []string {
	role = strings.TrimSpace(role)
	variants, ok := p.Variants[strings.ToLower(role)]
	if !ok {
		return []string{role}
	}

	out := make([]string, 0, len(variants)+1)
	out = append(out, role)
	for _, v := range variants {
		if !strings.EqualFold(v, role) {
			out = append(out, v)
		}
	}
	return out
}
