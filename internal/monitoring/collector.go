package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of a tenant's discovery
// activity within the lookback window.
type MetricsSnapshot struct {
	RequestsTotal    int     `json:"requests_total"`
	RequestsDone     int     `json:"requests_done"`
	RequestsPartial  int     `json:"requests_partial"`
	RequestsFailed   int     `json:"requests_failed"`
	RequestsDegraded int     `json:"requests_degraded"`
	FailRate         float64 `json:"fail_rate"`
	DegradedRate     float64 `json:"degraded_rate"`
	AvgCohesion      float64 `json:"avg_cohesion"`
	AvgMembers       float64 `json:"avg_members"`

	SpendUSD        float64           `json:"spend_usd"`
	SpendByProvider []store.SpendLine `json:"spend_by_provider"`

	TenantID      string    `json:"tenant_id"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the result store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect builds a snapshot for one tenant over the lookback window.
func (c *Collector) Collect(ctx context.Context, tenantID string, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	snap := &MetricsSnapshot{
		TenantID:      tenantID,
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	results, err := c.store.ListResults(ctx, store.ResultFilter{TenantID: tenantID, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list results")
	}

	var cohesionSum float64
	var memberSum int
	for _, r := range results {
		if r.CompletedAt.Before(cutoff) {
			continue
		}
		snap.RequestsTotal++
		switch r.State {
		case model.StateDone:
			snap.RequestsDone++
		case model.StatePartial:
			snap.RequestsPartial++
		case model.StateFailed:
			snap.RequestsFailed++
		}
		if r.Degraded {
			snap.RequestsDegraded++
		}
		cohesionSum += r.CohesionScore
		memberSum += len(r.Members)
	}

	if snap.RequestsTotal > 0 {
		snap.FailRate = float64(snap.RequestsFailed) / float64(snap.RequestsTotal)
		snap.DegradedRate = float64(snap.RequestsDegraded) / float64(snap.RequestsTotal)
		snap.AvgCohesion = cohesionSum / float64(snap.RequestsTotal)
		snap.AvgMembers = float64(memberSum) / float64(snap.RequestsTotal)
	}

	lines, err := c.store.SpendReport(ctx, tenantID, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: spend report")
	}
	snap.SpendByProvider = lines
	for _, l := range lines {
		snap.SpendUSD += l.AmountUSD
	}

	return snap, nil
}
