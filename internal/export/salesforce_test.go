package export

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyergroup-cli/pkg/salesforce"
)

// mockSFClient implements salesforce.Client with canned responses.
type mockSFClient struct {
	queryFn    func(soql string, out any) error
	insertID   string
	insertErr  error
	collection []salesforce.CollectionResult
	updateErr  error

	lastSOQL    string
	inserted    []map[string]any
	contactRows []map[string]any
	updated     map[string]any
	updatedID   string
}

func (m *mockSFClient) Query(_ context.Context, soql string, out any) error {
	m.lastSOQL = soql
	if m.queryFn != nil {
		return m.queryFn(soql, out)
	}
	return nil
}

func (m *mockSFClient) InsertOne(_ context.Context, _ string, record map[string]any) (string, error) {
	m.inserted = append(m.inserted, record)
	return m.insertID, m.insertErr
}

func (m *mockSFClient) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	m.contactRows = records
	if m.collection == nil {
		results := make([]salesforce.CollectionResult, len(records))
		for i := range results {
			results[i] = salesforce.CollectionResult{ID: "003X", Success: true}
		}
		return results, nil
	}
	return m.collection, nil
}

func (m *mockSFClient) UpdateOne(_ context.Context, _ string, id string, fields map[string]any) error {
	m.updatedID = id
	m.updated = fields
	return m.updateErr
}

func TestSalesforceSync_CreatesAccountAndContacts(t *testing.T) {
	client := &mockSFClient{insertID: "001NEW"}
	exp := NewSalesforceExporter(client)

	sync, err := exp.Sync(context.Background(), sampleExportResult())
	require.NoError(t, err)

	assert.Equal(t, "001NEW", sync.AccountID)
	assert.True(t, sync.AccountCreated)
	assert.Equal(t, 2, sync.ContactsSynced)
	assert.Empty(t, sync.Failures)

	assert.Contains(t, client.lastSOQL, "Name = 'Acme Corp'")
	require.Len(t, client.inserted, 1)
	assert.Equal(t, "Acme Corp", client.inserted[0]["Name"])
	assert.Equal(t, 2, client.inserted[0]["Buyer_Group_Size__c"])

	require.Len(t, client.contactRows, 2)
	assert.Equal(t, "001NEW", client.contactRows[0]["AccountId"])
	assert.Equal(t, "Jane", client.contactRows[0]["FirstName"])
	assert.Equal(t, "Smith", client.contactRows[0]["LastName"])
	assert.Equal(t, "jane@acme.com", client.contactRows[0]["Email"])
	_, hasEmail := client.contactRows[1]["Email"]
	assert.False(t, hasEmail)
}

func TestSalesforceSync_UpdatesExistingAccount(t *testing.T) {
	client := &mockSFClient{
		queryFn: func(_ string, out any) error {
			*(out.(*[]accountRecord)) = []accountRecord{{Id: "001OLD"}}
			return nil
		},
	}
	exp := NewSalesforceExporter(client)

	sync, err := exp.Sync(context.Background(), sampleExportResult())
	require.NoError(t, err)

	assert.Equal(t, "001OLD", sync.AccountID)
	assert.False(t, sync.AccountCreated)
	assert.Empty(t, client.inserted)
	assert.Equal(t, "001OLD", client.updatedID)
	assert.Equal(t, 0.82, client.updated["Buyer_Group_Cohesion__c"])
}

func TestSalesforceSync_CollectsContactFailures(t *testing.T) {
	client := &mockSFClient{
		insertID: "001NEW",
		collection: []salesforce.CollectionResult{
			{ID: "003A", Success: true},
			{Success: false, Errors: []string{"REQUIRED_FIELD_MISSING"}},
		},
	}
	exp := NewSalesforceExporter(client)

	sync, err := exp.Sync(context.Background(), sampleExportResult())
	require.NoError(t, err)

	assert.Equal(t, 1, sync.ContactsSynced)
	require.Len(t, sync.Failures, 1)
	assert.Contains(t, sync.Failures[0], "REQUIRED_FIELD_MISSING")
}

func TestSalesforceSync_QueryError(t *testing.T) {
	client := &mockSFClient{
		queryFn: func(_ string, _ any) error { return eris.New("invalid session") },
	}
	exp := NewSalesforceExporter(client)

	_, err := exp.Sync(context.Background(), sampleExportResult())
	assert.Error(t, err)
}

func TestSplitName(t *testing.T) {
	first, last := splitName("Jane Smith")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Smith", last)

	first, last = splitName("Mary Jo van Dyke")
	assert.Equal(t, "Mary Jo van", first)
	assert.Equal(t, "Dyke", last)

	first, last = splitName("Cher")
	assert.Equal(t, "", first)
	assert.Equal(t, "Cher", last)
}

func TestSOQLEscape(t *testing.T) {
	assert.Equal(t, `O\'Brien`, soqlEscape("O'Brien"))
	assert.Equal(t, `Acme \\ Inc`, soqlEscape(`Acme \ Inc`))
}
