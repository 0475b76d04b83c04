package scoring

import (
	"strings"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Seniority levels, broadest to narrowest.
const (
	SeniorityExecutive  = "Executive"
	SenioritySeniorLead = "Senior Leadership"
	SeniorityMidLevel   = "Mid-Level Management"
	SeniorityIC         = "Individual Contributor"
)

var seniorityKeywords = []struct {
	level    string
	keywords []string
}{
	{SeniorityExecutive, []string{
		"chief", "ceo", "cfo", "cto", "coo", "cio", "cmo", "cro",
		"president", "founder", "owner", "managing director",
	}},
	{SenioritySeniorLead, []string{
		"vice president", "vp", "svp", "evp", "head of", "senior director",
	}},
	{SeniorityMidLevel, []string{
		"director", "manager", "lead", "principal",
	}},
}

// InferSeniority maps a title to a seniority level. Providers that supply
// their own level take precedence over this inference.
func InferSeniority(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range seniorityKeywords {
		for _, kw := range entry.keywords {
			if containsWord(lower, kw) {
				return entry.level
			}
		}
	}
	return SeniorityIC
}

var departmentKeywords = []struct {
	department string
	keywords   []string
}{
	{"Executive", []string{"ceo", "coo", "president", "chief executive", "chief operating", "chief of staff", "founder", "owner"}},
	{"Engineering", []string{"engineer", "engineering", "cto", "developer", "infrastructure", "architect", "devops"}},
	{"Product", []string{"product", "program manager"}},
	{"Sales", []string{"sales", "revenue", "account executive", "cro", "business development"}},
	{"Marketing", []string{"marketing", "cmo", "brand", "growth", "communications", "content"}},
	{"Finance", []string{"finance", "financial", "accounting", "controller", "treasurer", "fp&a"}},
	{"Operations", []string{"operations", "logistics", "supply chain", "procurement"}},
	{"Human Resources", []string{"hr", "human resources", "people", "talent", "recruiting"}},
	{"Legal", []string{"legal", "counsel", "compliance", "regulatory", "privacy"}},
	{"Security", []string{"security", "ciso", "infosec"}},
	{"Information Technology", []string{"information technology", "it director", "cio", "help desk"}},
	{"Customer Success", []string{"customer success", "support", "solutions"}},
}

// InferDepartment maps a title to a department name when the provider did
// not supply one.
func InferDepartment(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range departmentKeywords {
		for _, kw := range entry.keywords {
			if containsWord(lower, kw) {
				return entry.department
			}
		}
	}
	return ""
}

// titleKeywords scores how strongly a title signals each role category.
// Primary keywords score 1.0, secondary 0.6.
var titleKeywords = map[model.RoleCategory]struct {
	primary   []string
	secondary []string
}{
	model.RoleDecisionMaker: {
		primary:   []string{"chief", "ceo", "cfo", "coo", "president", "founder", "owner", "managing director"},
		secondary: []string{"general manager", "managing partner"},
	},
	model.RoleChampion: {
		primary:   []string{"vice president", "vp", "head of", "senior director"},
		secondary: []string{"svp", "evp", "general manager"},
	},
	model.RoleStakeholder: {
		primary:   []string{"director", "manager", "lead"},
		secondary: []string{"principal", "senior", "analyst"},
	},
	model.RoleBlocker: {
		primary:   []string{"procurement", "counsel", "compliance", "legal", "security officer", "ciso"},
		secondary: []string{"risk", "privacy", "audit", "regulatory"},
	},
	model.RoleIntroducer: {
		primary:   []string{"business development", "partnerships", "account executive", "customer success", "sales development"},
		secondary: []string{"associate", "coordinator", "specialist", "alliances"},
	},
}

// departmentAffinity scores how relevant each department is per category.
// Departments missing from a row score the default 0.3.
var departmentAffinity = map[model.RoleCategory]map[string]float64{
	model.RoleDecisionMaker: {
		"Executive": 1.0, "Finance": 0.8, "Sales": 0.6, "Operations": 0.5,
	},
	model.RoleChampion: {
		"Sales": 0.9, "Product": 0.8, "Marketing": 0.8, "Engineering": 0.7, "Executive": 0.6,
	},
	model.RoleStakeholder: {
		"Operations": 0.9, "Product": 0.8, "Engineering": 0.8, "Finance": 0.7, "Marketing": 0.7,
	},
	model.RoleBlocker: {
		"Legal": 1.0, "Security": 1.0, "Finance": 0.8, "Operations": 0.6, "Information Technology": 0.6,
	},
	model.RoleIntroducer: {
		"Sales": 0.9, "Customer Success": 0.9, "Marketing": 0.7, "Human Resources": 0.5,
	},
}

// seniorityAffinity scores how well each seniority level fits a category.
var seniorityAffinity = map[model.RoleCategory]map[string]float64{
	model.RoleDecisionMaker: {
		SeniorityExecutive: 1.0, SenioritySeniorLead: 0.6, SeniorityMidLevel: 0.2, SeniorityIC: 0.0,
	},
	model.RoleChampion: {
		SenioritySeniorLead: 1.0, SeniorityExecutive: 0.7, SeniorityMidLevel: 0.5, SeniorityIC: 0.2,
	},
	model.RoleStakeholder: {
		SeniorityMidLevel: 1.0, SenioritySeniorLead: 0.7, SeniorityIC: 0.5, SeniorityExecutive: 0.3,
	},
	model.RoleBlocker: {
		SenioritySeniorLead: 0.9, SeniorityExecutive: 0.8, SeniorityMidLevel: 0.7, SeniorityIC: 0.3,
	},
	model.RoleIntroducer: {
		SeniorityIC: 1.0, SeniorityMidLevel: 0.7, SenioritySeniorLead: 0.4, SeniorityExecutive: 0.2,
	},
}

// roleRange bounds how many members of each category a balanced buyer
// group carries.
type roleRange struct {
	Min, Max int
}

var roleRanges = map[model.RoleCategory]roleRange{
	model.RoleDecisionMaker: {Min: 1, Max: 3},
	model.RoleChampion:      {Min: 2, Max: 4},
	model.RoleStakeholder:   {Min: 2, Max: 5},
	model.RoleBlocker:       {Min: 0, Max: 2},
	model.RoleIntroducer:    {Min: 1, Max: 3},
}

// containsWord matches a keyword at word boundaries, so "cio" does not
// match inside "precious".
func containsWord(haystack, keyword string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
