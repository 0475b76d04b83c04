package fusion

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Reliability ranks providers per field, best first. The winner for any
// contested field is the value from the best-ranked provider that
// supplied one.
type Reliability struct {
	Fields  map[string][]string `yaml:"fields"`
	Default []string            `yaml:"default"`
}

// DefaultReliability encodes which provider we trust most per field:
// contact verification wins contact fields, the employment graph wins
// org-chart fields, AI research owns the narrative fields it generates.
func DefaultReliability() *Reliability {
	return &Reliability{
		Fields: map[string][]string{
			model.FieldEmail:       {"contactverify", "peopledata"},
			model.FieldPhone:       {"contactverify", "peopledata"},
			model.FieldName:        {"companygraph", "peopledata", "contactverify"},
			model.FieldTitle:       {"companygraph", "peopledata"},
			model.FieldDepartment:  {"companygraph", "peopledata"},
			model.FieldSeniority:   {"companygraph", "peopledata"},
			model.FieldConnections: {"companygraph", "peopledata"},
			model.FieldProfileURL:  {"peopledata", "companygraph"},
			model.FieldCareer:      {"peopledata"},
			model.FieldMotivations: {"airesearch"},
			model.FieldPainPoints:  {"airesearch"},
			model.FieldOutreach:    {"airesearch"},
		},
		Default: []string{"companygraph", "peopledata", "contactverify", "airesearch"},
	}
}

// LoadReliability reads a ranking table from a YAML file and merges it
// over the defaults. An empty path returns the defaults unchanged.
func LoadReliability(path string) (*Reliability, error) {
	r := DefaultReliability()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fusion: read reliability %s", path)
	}

	var wrapper struct {
		Reliability Reliability `yaml:"reliability"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "fusion: parse reliability")
	}

	for field, providers := range wrapper.Reliability.Fields {
		r.Fields[field] = providers
	}
	if len(wrapper.Reliability.Default) > 0 {
		r.Default = wrapper.Reliability.Default
	}
	return r, nil
}

// Rank returns the provider's position in the field's ranking, 0 being
// most trusted. Providers missing from the table rank after every listed
// one.
func (r *Reliability) Rank(field, provider string) int {
	ranking, ok := r.Fields[field]
	if !ok {
		ranking = r.Default
	}
	for i, p := range ranking {
		if p == provider {
			return i
		}
	}
	return len(ranking)
}

// Confidence maps a field's winning rank and corroboration count to a
// per-field confidence. Agreement from additional providers raises it.
func (r *Reliability) Confidence(field, provider string, agreeing int) float64 {
	conf := 0.95 - 0.1*float64(r.Rank(field, provider))
	if conf < 0.5 {
		conf = 0.5
	}
	if agreeing > 1 {
		conf += 0.04 * float64(agreeing-1)
	}
	if conf > 0.99 {
		conf = 0.99
	}
	return conf
}
