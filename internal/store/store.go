// Package store is the persistence boundary: finished buyer-group
// results, their members, and the append-only cost ledger.
package store

import (
	"context"
	"time"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// ResultFilter specifies criteria for listing results.
type ResultFilter struct {
	TenantID string `json:"tenant_id,omitempty"`
	Company  string `json:"company,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SpendLine is one row of a tenant spend report.
type SpendLine struct {
	Provider  string  `json:"provider"`
	Calls     int     `json:"calls"`
	AmountUSD float64 `json:"amount_usd"`
}

// Store defines the persistence interface for the enrichment engine.
// Append satisfies ledger.Sink, so a store can be handed straight to the
// budget ledger.
type Store interface {
	// Results
	SaveResult(ctx context.Context, result *model.BuyerGroupResult) error
	GetResult(ctx context.Context, requestID string) (*model.BuyerGroupResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.BuyerGroupResult, error)

	// Cost ledger
	Append(ctx context.Context, entry model.CostLedgerEntry) error
	SpendReport(ctx context.Context, tenantID string, since time.Time) ([]SpendLine, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
