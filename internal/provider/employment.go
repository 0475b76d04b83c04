package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/pkg/companygraph"
)

// EmploymentAdapter backs company resolution and employee discovery with
// the employment-graph provider.
type EmploymentAdapter struct {
	client        companygraph.Client
	costPerSearch float64
	searchLimit   int
}

// NewEmploymentAdapter wires the employment-graph client. costPerSearch
// is the per-credit price; searchLimit caps preview listings per search.
func NewEmploymentAdapter(client companygraph.Client, costPerSearch float64, searchLimit int) *EmploymentAdapter {
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &EmploymentAdapter{client: client, costPerSearch: costPerSearch, searchLimit: searchLimit}
}

func (a *EmploymentAdapter) Name() string { return planner.ProviderCompanyGraph }

func (a *EmploymentAdapter) Operations() []string {
	return []string{planner.OpResolveCompany, planner.OpSearchEmployees}
}

func (a *EmploymentAdapter) CostEstimate(string) float64 { return a.costPerSearch }

func (a *EmploymentAdapter) Fetch(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	switch q.Operation {
	case planner.OpResolveCompany:
		return a.resolve(ctx, q)
	case planner.OpSearchEmployees:
		return a.search(ctx, q)
	default:
		return nil, 0, eris.Errorf("companygraph: unsupported operation %s", q.Operation)
	}
}

func (a *EmploymentAdapter) resolve(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	lookup := q.Domain
	if lookup == "" {
		lookup = q.CompanyName
	}
	company, err := a.client.ResolveCompany(ctx, lookup)
	if err != nil {
		return nil, a.costPerSearch, err
	}
	if company == nil {
		// A clean miss still consumes a search credit.
		return nil, a.costPerSearch, nil
	}

	record := model.RawRecord{
		Provider:   a.Name(),
		EntityType: model.EntityCompany,
		Fields: map[string]any{
			model.FieldExternalID: company.ID,
			model.FieldName:       company.Name,
			model.FieldDomain:     company.Website,
		},
		CostUSD:   a.costPerSearch,
		FetchedAt: time.Now(),
	}
	return []model.RawRecord{record}, a.costPerSearch, nil
}

func (a *EmploymentAdapter) search(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	resp, err := a.client.SearchEmployees(ctx, companygraph.EmployeeSearch{
		CompanyID:     q.CompanyID,
		CompanyName:   q.CompanyName,
		TitleKeywords: q.Titles,
		Limit:         a.searchLimit,
	})
	if err != nil {
		return nil, a.costPerSearch, err
	}

	// Pagination can bill more than one credit per search.
	cost := a.costPerSearch * float64(resp.CreditsCharged)
	if resp.CreditsCharged == 0 {
		cost = a.costPerSearch
	}

	records := make([]model.RawRecord, 0, len(resp.Employees))
	fetched := time.Now()
	for _, e := range resp.Employees {
		records = append(records, model.RawRecord{
			Provider:   a.Name(),
			EntityType: model.EntityPerson,
			Fields: map[string]any{
				model.FieldExternalID:  e.ID,
				model.FieldName:        e.FullName,
				model.FieldTitle:       e.Title,
				model.FieldDepartment:  e.Department,
				model.FieldSeniority:   e.Seniority,
				model.FieldProfileURL:  e.ProfileURL,
				model.FieldConnections: e.Connections,
				model.FieldEmployer:    e.CompanyName,
			},
			CostUSD:   cost / float64(max(len(resp.Employees), 1)),
			FetchedAt: fetched,
		})
	}
	return records, cost, nil
}
