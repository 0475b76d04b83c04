package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/pkg/peopledata"
)

// PersonDataAdapter deep-enriches one candidate with the aggregated
// people-data provider: career history, profile links, extra contact
// points.
type PersonDataAdapter struct {
	client        peopledata.Client
	costPerEnrich float64
}

// NewPersonDataAdapter wires the people-data client.
func NewPersonDataAdapter(client peopledata.Client, costPerEnrich float64) *PersonDataAdapter {
	return &PersonDataAdapter{client: client, costPerEnrich: costPerEnrich}
}

func (a *PersonDataAdapter) Name() string { return planner.ProviderPeopleData }

func (a *PersonDataAdapter) Operations() []string {
	return []string{planner.OpEnrichPerson}
}

func (a *PersonDataAdapter) CostEstimate(string) float64 { return a.costPerEnrich }

func (a *PersonDataAdapter) Fetch(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	if q.Operation != planner.OpEnrichPerson {
		return nil, 0, eris.Errorf("peopledata: unsupported operation %s", q.Operation)
	}
	if q.Candidate == nil {
		return nil, 0, eris.New("peopledata: enrich_person needs a candidate")
	}

	person, err := a.client.EnrichPerson(ctx, peopledata.PersonQuery{
		Name:       q.Candidate.Str(model.FieldName),
		Company:    q.Candidate.Str(model.FieldEmployer),
		ProfileURL: q.Candidate.Str(model.FieldProfileURL),
	})
	if err != nil {
		return nil, a.costPerEnrich, err
	}
	if person == nil {
		// Misses are not billed on this provider.
		return nil, 0, nil
	}

	fields := map[string]any{
		model.FieldName:  person.FullName,
		model.FieldTitle: person.Title,
	}
	if person.Company != "" {
		fields[model.FieldEmployer] = person.Company
	}
	if len(person.Emails) > 0 {
		fields[model.FieldEmail] = person.Emails[0]
	}
	if len(person.Phones) > 0 {
		fields[model.FieldPhone] = person.Phones[0]
	}
	if person.ProfileURL != "" {
		fields[model.FieldProfileURL] = person.ProfileURL
	}
	if person.Connections > 0 {
		fields[model.FieldConnections] = person.Connections
	}
	if len(person.Experience) > 0 {
		fields[model.FieldCareer] = careerSummary(person.Experience)
	}

	record := model.RawRecord{
		Provider:   a.Name(),
		EntityType: model.EntityPerson,
		Fields:     fields,
		CostUSD:    a.costPerEnrich,
		FetchedAt:  time.Now(),
	}
	return []model.RawRecord{record}, a.costPerEnrich, nil
}

// careerSummary flattens a career history into one display string, most
// recent first as the provider returns them.
func careerSummary(history []peopledata.Experience) string {
	summary := ""
	for i, exp := range history {
		if i > 0 {
			summary += "; "
		}
		end := exp.EndDate
		if end == "" {
			end = "present"
		}
		summary += fmt.Sprintf("%s at %s (%s to %s)", exp.Title, exp.Company, exp.StartDate, end)
	}
	return summary
}
