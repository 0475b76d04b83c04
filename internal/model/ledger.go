package model

import "time"

// CostLedgerEntry records one chargeable provider call. Entries are
// append-only; rolling spend for budget checks is computed over them.
type CostLedgerEntry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Provider  string    `json:"provider"`
	RequestID string    `json:"request_id"`
	AmountUSD float64   `json:"amount_usd"`
	ChargedAt time.Time `json:"charged_at"`
}
