package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/pkg/salesforce"
)

// SalesforceExporter syncs a buyer-group result into Salesforce: one Account
// per company and one Contact per group member.
type SalesforceExporter struct {
	client salesforce.Client
}

// NewSalesforceExporter creates an exporter backed by the given client.
func NewSalesforceExporter(client salesforce.Client) *SalesforceExporter {
	return &SalesforceExporter{client: client}
}

// SalesforceSync reports what a Sync call wrote.
type SalesforceSync struct {
	AccountID      string   `json:"account_id"`
	AccountCreated bool     `json:"account_created"`
	ContactsSynced int      `json:"contacts_synced"`
	Failures       []string `json:"failures,omitempty"`
}

type accountRecord struct {
	Id string
}

// Sync upserts the Account for the result's company, then inserts one Contact
// per member. Individual contact failures are collected, not fatal.
func (e *SalesforceExporter) Sync(ctx context.Context, result *model.BuyerGroupResult) (*SalesforceSync, error) {
	if result == nil {
		return nil, eris.New("export: nil result")
	}
	if result.CompanyName == "" {
		return nil, eris.New("export: result has no company name")
	}

	accountID, created, err := e.ensureAccount(ctx, result)
	if err != nil {
		return nil, err
	}

	sync := &SalesforceSync{AccountID: accountID, AccountCreated: created}

	records := contactRecords(accountID, result.Members)
	if len(records) == 0 {
		return sync, nil
	}

	results, err := e.client.InsertCollection(ctx, "Contact", records)
	if err != nil {
		return nil, eris.Wrap(err, "export: insert contacts")
	}
	for i, r := range results {
		if r.Success {
			sync.ContactsSynced++
			continue
		}
		name, _ := records[i]["LastName"].(string)
		sync.Failures = append(sync.Failures,
			fmt.Sprintf("contact %s: %s", name, strings.Join(r.Errors, "; ")))
	}

	zap.L().Info("salesforce sync complete",
		zap.String("request_id", result.RequestID),
		zap.String("account_id", accountID),
		zap.Bool("account_created", created),
		zap.Int("contacts_synced", sync.ContactsSynced),
		zap.Int("failures", len(sync.Failures)))
	return sync, nil
}

// ensureAccount finds the Account by exact name or creates it, and stamps the
// buyer-group metrics onto it either way.
func (e *SalesforceExporter) ensureAccount(ctx context.Context, result *model.BuyerGroupResult) (string, bool, error) {
	soql := fmt.Sprintf("SELECT Id FROM Account WHERE Name = '%s' LIMIT 1", soqlEscape(result.CompanyName))

	var existing []accountRecord
	if err := e.client.Query(ctx, soql, &existing); err != nil {
		return "", false, eris.Wrap(err, "export: find account")
	}

	metrics := map[string]any{
		"Buyer_Group_Size__c":     len(result.Members),
		"Buyer_Group_Cohesion__c": result.CohesionScore,
		"Enrichment_Tier__c":      string(result.Tier),
		"Enrichment_Cost__c":      result.TotalCostUSD,
	}

	if len(existing) > 0 {
		id := existing[0].Id
		if err := e.client.UpdateOne(ctx, "Account", id, metrics); err != nil {
			return "", false, eris.Wrap(err, "export: update account")
		}
		return id, false, nil
	}

	fields := map[string]any{"Name": result.CompanyName}
	for k, v := range metrics {
		fields[k] = v
	}
	id, err := e.client.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", false, eris.Wrap(err, "export: create account")
	}
	return id, true, nil
}

// contactRecords builds one Contact payload per member that has a name.
func contactRecords(accountID string, members []model.Member) []map[string]any {
	records := make([]map[string]any, 0, len(members))
	for _, m := range members {
		name := m.Candidate.Str(model.FieldName)
		if name == "" {
			continue
		}
		first, last := splitName(name)
		rec := map[string]any{
			"AccountId": accountID,
			"FirstName": first,
			"LastName":  last,
			"Description": fmt.Sprintf("Buyer group role: %s (score %.2f). %s",
				m.Role.Role, m.Role.Score, strings.Join(m.Role.Rationale, " ")),
		}
		if v := m.Candidate.Str(model.FieldTitle); v != "" {
			rec["Title"] = v
		}
		if v := m.Candidate.Str(model.FieldEmail); v != "" {
			rec["Email"] = v
		}
		if v := m.Candidate.Str(model.FieldPhone); v != "" {
			rec["Phone"] = v
		}
		if v := m.Candidate.Str(model.FieldDepartment); v != "" {
			rec["Department"] = v
		}
		records = append(records, rec)
	}
	return records
}

// splitName separates a display name into first/last. Salesforce requires
// LastName, so a single-token name lands there.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", name
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func soqlEscape(s string) string {
	return soqlEscaper.Replace(s)
}
