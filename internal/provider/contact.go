package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/pkg/contactverify"
)

// ContactAdapter finds and verifies contact details for one candidate at
// a time.
type ContactAdapter struct {
	client      contactverify.Client
	costPerFind float64
}

// NewContactAdapter wires the contact-verification client.
func NewContactAdapter(client contactverify.Client, costPerFind float64) *ContactAdapter {
	return &ContactAdapter{client: client, costPerFind: costPerFind}
}

func (a *ContactAdapter) Name() string { return planner.ProviderContactVerify }

func (a *ContactAdapter) Operations() []string {
	return []string{planner.OpFindContact}
}

func (a *ContactAdapter) CostEstimate(string) float64 { return a.costPerFind }

func (a *ContactAdapter) Fetch(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	if q.Operation != planner.OpFindContact {
		return nil, 0, eris.Errorf("contactverify: unsupported operation %s", q.Operation)
	}
	if q.Candidate == nil {
		return nil, 0, eris.New("contactverify: find_contact needs a candidate")
	}

	contact, err := a.client.FindContact(ctx, contactverify.FindRequest{
		FullName: q.Candidate.Str(model.FieldName),
		Domain:   q.Domain,
	})
	if err != nil {
		return nil, 0, err
	}

	var cost float64
	if contact.Charged {
		cost = a.costPerFind
	}
	if contact.Email == "" && contact.Phone == "" {
		// Charged miss: cost flows to the ledger, no record to fuse.
		return nil, cost, nil
	}

	fields := map[string]any{
		model.FieldName: q.Candidate.Str(model.FieldName),
	}
	if contact.Email != "" {
		fields[model.FieldEmail] = contact.Email
	}
	if contact.Phone != "" {
		fields[model.FieldPhone] = contact.Phone
	}
	if employer := q.Candidate.Str(model.FieldEmployer); employer != "" {
		fields[model.FieldEmployer] = employer
	}
	if id := q.Candidate.Str(model.FieldExternalID); id != "" {
		fields[model.FieldExternalID] = id
	}

	record := model.RawRecord{
		Provider:   a.Name(),
		EntityType: model.EntityPerson,
		Fields:     fields,
		CostUSD:    cost,
		FetchedAt:  time.Now(),
	}
	return []model.RawRecord{record}, cost, nil
}
