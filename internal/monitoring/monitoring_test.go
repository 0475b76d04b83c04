package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyergroup-cli/internal/config"
	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/store"
)

func TestMetrics_CallCompleted(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CallCompleted("companygraph", "search_employees", 0.05, 120*time.Millisecond, nil)
	m.CallCompleted("companygraph", "search_employees", 0.10, 300*time.Millisecond, nil)
	m.CallCompleted("contactverify", "find_contact", 0.0198, 80*time.Millisecond, eris.New("boom"))
	// A free failure produces a call sample but no cost.
	m.CallCompleted("peopledata", "enrich_person", 0, 50*time.Millisecond, eris.New("miss"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("companygraph", "search_employees", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("contactverify", "find_contact", "error")))
	assert.InDelta(t, 0.15, testutil.ToFloat64(m.cost.WithLabelValues("companygraph")), 1e-9)
	assert.InDelta(t, 0.0198, testutil.ToFloat64(m.cost.WithLabelValues("contactverify")), 1e-9)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cost.WithLabelValues("peopledata")))
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest(&model.BuyerGroupResult{Tier: model.TierEnrich, State: model.StateDone})
	m.ObserveRequest(&model.BuyerGroupResult{Tier: model.TierEnrich, State: model.StateDone, Degraded: true})
	m.ObserveRequest(&model.BuyerGroupResult{Tier: model.TierIdentify, State: model.StatePartial, Partial: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("enrich", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partial))
}

// fakeStore serves canned results and spend lines to the collector.
type fakeStore struct {
	results []model.BuyerGroupResult
	spend   []store.SpendLine
}

func (f *fakeStore) SaveResult(context.Context, *model.BuyerGroupResult) error { return nil }
func (f *fakeStore) GetResult(context.Context, string) (*model.BuyerGroupResult, error) {
	return nil, nil
}
func (f *fakeStore) ListResults(context.Context, store.ResultFilter) ([]model.BuyerGroupResult, error) {
	return f.results, nil
}
func (f *fakeStore) Append(context.Context, model.CostLedgerEntry) error { return nil }
func (f *fakeStore) SpendReport(context.Context, string, time.Time) ([]store.SpendLine, error) {
	return f.spend, nil
}
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeStore{
		results: []model.BuyerGroupResult{
			{State: model.StateDone, CohesionScore: 0.8, CompletedAt: now.Add(-time.Hour),
				Members: make([]model.Member, 10)},
			{State: model.StateDone, CohesionScore: 0.6, Degraded: true, CompletedAt: now.Add(-2 * time.Hour),
				Members: make([]model.Member, 8)},
			{State: model.StatePartial, CohesionScore: 0.2, CompletedAt: now.Add(-3 * time.Hour),
				Members: make([]model.Member, 3)},
			{State: model.StateFailed, CompletedAt: now.Add(-4 * time.Hour)},
			// Outside the lookback window.
			{State: model.StateDone, CohesionScore: 1.0, CompletedAt: now.Add(-48 * time.Hour)},
		},
		spend: []store.SpendLine{
			{Provider: "companygraph", Calls: 12, AmountUSD: 0.60},
			{Provider: "contactverify", Calls: 20, AmountUSD: 0.396},
		},
	}

	snap, err := NewCollector(st).Collect(context.Background(), "acme", 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RequestsTotal)
	assert.Equal(t, 2, snap.RequestsDone)
	assert.Equal(t, 1, snap.RequestsPartial)
	assert.Equal(t, 1, snap.RequestsFailed)
	assert.Equal(t, 1, snap.RequestsDegraded)
	assert.InDelta(t, 0.25, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.25, snap.DegradedRate, 1e-9)
	assert.InDelta(t, 0.4, snap.AvgCohesion, 1e-9)
	assert.InDelta(t, 5.25, snap.AvgMembers, 1e-9)
	assert.InDelta(t, 0.996, snap.SpendUSD, 1e-9)
	assert.Equal(t, "acme", snap.TenantID)
}

func TestAlerter_Evaluate(t *testing.T) {
	cfg := config.MonitoringConfig{
		FailureRateThreshold:  0.2,
		DegradedRateThreshold: 0.5,
		CostThresholdUSD:      10,
		LookbackWindowHours:   24,
	}
	a := NewAlerter(cfg)

	t.Run("quiet snapshot", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{RequestsTotal: 20, RequestsFailed: 1, FailRate: 0.05, SpendUSD: 2})
		assert.Empty(t, alerts)
	})

	t.Run("too few requests for rate alerts", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{RequestsTotal: 2, RequestsFailed: 2, FailRate: 1.0})
		assert.Empty(t, alerts)
	})

	t.Run("all thresholds breached", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{
			RequestsTotal:    10,
			RequestsFailed:   4,
			FailRate:         0.4,
			RequestsDegraded: 7,
			DegradedRate:     0.7,
			SpendUSD:         25,
		})
		require.Len(t, alerts, 3)
		types := []AlertType{alerts[0].Type, alerts[1].Type, alerts[2].Type}
		assert.Contains(t, types, AlertFailureRate)
		assert.Contains(t, types, AlertDegradedRate)
		assert.Contains(t, types, AlertCostOverrun)
	})
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	alerts := []Alert{
		{Type: AlertFailureRate, Severity: "high", Message: "failing"},
		{Type: AlertCostOverrun, Severity: "high", Message: "expensive"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int64(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}})
	assert.Equal(t, 0, sent)
}
