package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyergroup-cli/internal/cache"
	"github.com/sells-group/buyergroup-cli/internal/ledger"
	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/internal/provider"
)

type stubAdapter struct {
	name string
	ops  []string
	fn   func(ctx context.Context, q provider.Query) ([]model.RawRecord, float64, error)
}

func (s *stubAdapter) Name() string                { return s.name }
func (s *stubAdapter) Operations() []string        { return s.ops }
func (s *stubAdapter) CostEstimate(string) float64 { return 0.05 }
func (s *stubAdapter) Fetch(ctx context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
	return s.fn(ctx, q)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []model.CostLedgerEntry
}

func (s *recordingSink) Append(_ context.Context, e model.CostLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) totalFor(requestID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, e := range s.entries {
		if e.RequestID == requestID {
			sum += e.AmountUSD
		}
	}
	return sum
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func person(id, name, title, department, seniority string, connections int) model.RawRecord {
	return model.RawRecord{
		Provider:   planner.ProviderCompanyGraph,
		EntityType: model.EntityPerson,
		Fields: map[string]any{
			model.FieldExternalID:  id,
			model.FieldName:        name,
			model.FieldTitle:       title,
			model.FieldDepartment:  department,
			model.FieldSeniority:   seniority,
			model.FieldConnections: connections,
			model.FieldEmployer:    "Acme Corp",
		},
		CostUSD:   0.01,
		FetchedAt: time.Now(),
	}
}

func graphAdapter() *stubAdapter {
	employees := []model.RawRecord{
		person("e1", "Jane Smith", "Chief Financial Officer", "Finance", "Executive", 900),
		person("e2", "Tom Lee", "VP Sales", "Sales", "Senior Leadership", 600),
		person("e3", "Ann Wu", "Sales Manager", "Sales", "Mid-Level Management", 300),
		person("e4", "Bob Ray", "General Counsel", "Legal", "Senior Leadership", 250),
		person("e5", "Kim Cole", "Chief of Staff", "Executive", "Senior Leadership", 400),
	}
	return &stubAdapter{
		name: planner.ProviderCompanyGraph,
		ops:  []string{planner.OpResolveCompany, planner.OpSearchEmployees},
		fn: func(_ context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
			if q.Operation == planner.OpResolveCompany {
				company := model.RawRecord{
					Provider:   planner.ProviderCompanyGraph,
					EntityType: model.EntityCompany,
					Fields: map[string]any{
						model.FieldExternalID: "c1",
						model.FieldName:       "Acme Corp",
						model.FieldDomain:     "acme.com",
					},
					CostUSD:   0.05,
					FetchedAt: time.Now(),
				}
				return []model.RawRecord{company}, 0.05, nil
			}
			// Every micro-targeted search returns the same employees;
			// fusion dedupes them by external ID.
			return employees, 0.05, nil
		},
	}
}

func contactAdapter() *stubAdapter {
	return &stubAdapter{
		name: planner.ProviderContactVerify,
		ops:  []string{planner.OpFindContact},
		fn: func(_ context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
			rec := model.RawRecord{
				Provider:   planner.ProviderContactVerify,
				EntityType: model.EntityPerson,
				Fields: map[string]any{
					model.FieldExternalID: q.Candidate.Str(model.FieldExternalID),
					model.FieldName:       q.Candidate.Str(model.FieldName),
					model.FieldEmployer:   q.Candidate.Str(model.FieldEmployer),
					model.FieldEmail:      "verified@acme.com",
				},
				CostUSD:   0.0198,
				FetchedAt: time.Now(),
			}
			return []model.RawRecord{rec}, 0.0198, nil
		},
	}
}

func peopleAdapter() *stubAdapter {
	return &stubAdapter{
		name: planner.ProviderPeopleData,
		ops:  []string{planner.OpEnrichPerson},
		fn: func(_ context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
			rec := model.RawRecord{
				Provider:   planner.ProviderPeopleData,
				EntityType: model.EntityPerson,
				Fields: map[string]any{
					model.FieldExternalID: q.Candidate.Str(model.FieldExternalID),
					model.FieldName:       q.Candidate.Str(model.FieldName),
					model.FieldEmployer:   q.Candidate.Str(model.FieldEmployer),
					model.FieldProfileURL: "https://example.com/profile",
					model.FieldCareer:     "Acme Corp (2020 to present)",
				},
				CostUSD:   0.03,
				FetchedAt: time.Now(),
			}
			return []model.RawRecord{rec}, 0.03, nil
		},
	}
}

type fixture struct {
	orch   *Orchestrator
	budget *ledger.Ledger
	sink   *recordingSink
}

func newFixture(t *testing.T, caps ledger.Caps, adapters ...provider.Adapter) *fixture {
	t.Helper()
	sink := &recordingSink{}
	budget := ledger.New(caps, sink)

	reg := provider.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	runner := provider.NewRunner(reg, budget, 1000, 1000)

	plans := planner.New(nil, planner.DefaultCostTable(), 5.0, 5)
	orch := New(runner, plans, budget, cache.NewMemory(), DefaultConfig())
	return &fixture{orch: orch, budget: budget, sink: sink}
}

func request(tier model.Tier) model.EnrichmentRequest {
	return model.EnrichmentRequest{
		ID:          "req-" + string(tier),
		TenantID:    "acme-tenant",
		CompanyName: "Acme Corp",
		Tier:        tier,
	}
}

func TestDiscover_IdentifyTier(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graphAdapter())

	result, err := f.orch.Discover(context.Background(), request(model.TierIdentify))
	require.NoError(t, err)

	assert.Equal(t, model.TierIdentify, result.Tier)
	assert.Equal(t, model.StateDone, result.State)
	assert.False(t, result.Degraded)
	assert.False(t, result.Partial)
	assert.Len(t, result.Members, 5)
	assert.Equal(t, []string{planner.ProviderCompanyGraph}, result.SourcesUsed)
	assert.Greater(t, result.CohesionScore, 0.0)

	// No contact providers were invoked, so no member has an email.
	for _, m := range result.Members {
		assert.Empty(t, m.Candidate.Str(model.FieldEmail))
	}
}

func TestDiscover_TotalCostMatchesLedger(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000},
		graphAdapter(), contactAdapter(), peopleAdapter())

	req := request(model.TierEnrich)
	result, err := f.orch.Discover(context.Background(), req)
	require.NoError(t, err)

	assert.InDelta(t, f.sink.totalFor(req.ID), result.TotalCostUSD, 1e-9)
	assert.InDelta(t, f.budget.RequestTotal(req.ID), result.TotalCostUSD, 1e-9)
	assert.Greater(t, result.TotalCostUSD, 0.0)
}

func TestDiscover_EnrichSupersetOfIdentify(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000},
		graphAdapter(), contactAdapter(), peopleAdapter())
	ctx := context.Background()

	identify, err := f.orch.Discover(ctx, request(model.TierIdentify))
	require.NoError(t, err)

	enrich, err := f.orch.Discover(ctx, request(model.TierEnrich))
	require.NoError(t, err)

	identified := make(map[string]bool)
	for _, m := range identify.Members {
		identified[m.Candidate.Str(model.FieldExternalID)] = true
	}
	enriched := make(map[string]bool)
	withEmail := 0
	for _, m := range enrich.Members {
		enriched[m.Candidate.Str(model.FieldExternalID)] = true
		if m.Candidate.Str(model.FieldEmail) != "" {
			withEmail++
		}
	}

	for id := range identified {
		assert.True(t, enriched[id], "enrich lost candidate %s", id)
	}
	assert.Greater(t, withEmail, 0, "enrich tier produced no validated emails")
	assert.Equal(t, []string{
		planner.ProviderCompanyGraph,
		planner.ProviderContactVerify,
		planner.ProviderPeopleData,
	}, enrich.SourcesUsed)
}

func TestDiscover_CompanyNotFound(t *testing.T) {
	graph := graphAdapter()
	graph.fn = func(_ context.Context, _ provider.Query) ([]model.RawRecord, float64, error) {
		// A clean miss still charges a credit.
		return nil, 0.05, nil
	}
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graph)

	_, err := f.orch.Discover(context.Background(), request(model.TierIdentify))
	require.Error(t, err)
	assert.Equal(t, KindCompanyNotFound, KindOf(err))

	// The charged miss still landed in the ledger.
	assert.Equal(t, 1, f.sink.count())
}

func TestDiscover_DegradesDeepResearchToEnrich(t *testing.T) {
	// Budget covers enrich (~0.55 estimated) but not deep research
	// (~0.95 estimated).
	f := newFixture(t, ledger.Caps{DailyUSD: 0.70, MonthlyUSD: 100},
		graphAdapter(), contactAdapter(), peopleAdapter())

	result, err := f.orch.Discover(context.Background(), request(model.TierDeepResearch))
	require.NoError(t, err)

	assert.Equal(t, model.TierEnrich, result.Tier)
	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Warnings)
}

func TestDiscover_BudgetExceededWhenIdentifyUnaffordable(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 0.10, MonthlyUSD: 100}, graphAdapter())

	_, err := f.orch.Discover(context.Background(), request(model.TierIdentify))
	require.Error(t, err)
	assert.Equal(t, KindBudgetExceeded, KindOf(err))
}

func TestDiscover_CacheHitSkipsProviders(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graphAdapter())
	ctx := context.Background()

	first, err := f.orch.Discover(ctx, request(model.TierIdentify))
	require.NoError(t, err)
	spent := f.sink.count()

	second, err := f.orch.Discover(ctx, request(model.TierIdentify))
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, spent, f.sink.count(), "cache hit must not spend")
}

func TestDiscover_AllSearchesFailed(t *testing.T) {
	graph := graphAdapter()
	resolve := graph.fn
	graph.fn = func(ctx context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
		if q.Operation == planner.OpResolveCompany {
			return resolve(ctx, q)
		}
		return nil, 0, eris.New("401 unauthorized")
	}
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graph)

	_, err := f.orch.Discover(context.Background(), request(model.TierIdentify))
	require.Error(t, err)
	assert.Equal(t, KindProviderUnavailable, KindOf(err))
}

func TestDiscover_DeadlineReturnsPartial(t *testing.T) {
	graph := graphAdapter()
	resolve := graph.fn
	graph.fn = func(ctx context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
		if q.Operation == planner.OpResolveCompany {
			return resolve(ctx, q)
		}
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graph)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := f.orch.Discover(ctx, request(model.TierIdentify))
	require.NoError(t, err, "deadline must snapshot a partial result, not fail")
	assert.True(t, result.Partial)
	assert.Equal(t, model.StatePartial, result.State)
	assert.Empty(t, result.Members)
}

// setRecordingCache captures the context each Set call received.
type setRecordingCache struct {
	cache.Cache
	setErr error
}

func (c *setRecordingCache) Set(ctx context.Context, key string, result *model.BuyerGroupResult, ttl time.Duration) {
	c.setErr = ctx.Err()
	c.Cache.Set(ctx, key, result, ttl)
}

func TestDiscover_PartialResultStillCached(t *testing.T) {
	graph := graphAdapter()
	resolve := graph.fn
	graph.fn = func(ctx context.Context, q provider.Query) ([]model.RawRecord, float64, error) {
		if q.Operation == planner.OpResolveCompany {
			return resolve(ctx, q)
		}
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graph)

	recording := &setRecordingCache{Cache: cache.NewMemory()}
	f.orch = f.orch.WithCache(recording)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := f.orch.Discover(ctx, request(model.TierIdentify))
	require.NoError(t, err)
	require.True(t, result.Partial)

	// The expired request deadline must not poison the cache write.
	assert.NoError(t, recording.setErr)
	cached, ok := recording.Get(context.Background(), cache.Key(request(model.TierIdentify)))
	require.True(t, ok)
	assert.Equal(t, result.RequestID, cached.RequestID)
}

func TestDiscover_RequestIDAssigned(t *testing.T) {
	f := newFixture(t, ledger.Caps{DailyUSD: 100, MonthlyUSD: 1000}, graphAdapter())

	req := request(model.TierIdentify)
	req.ID = ""
	result, err := f.orch.Discover(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RequestID)
}
