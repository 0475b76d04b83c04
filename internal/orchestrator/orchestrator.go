// Package orchestrator is the top-level entry point for buyer-group
// discovery. It routes a request to a tier, drives the planned provider
// calls through the budget gate, and turns the fetched records into a
// fused, role-scored result. Deadlines snapshot whatever stage finished
// instead of discarding completed work.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/buyergroup-cli/internal/cache"
	"github.com/sells-group/buyergroup-cli/internal/fusion"
	"github.com/sells-group/buyergroup-cli/internal/ledger"
	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/internal/provider"
	"github.com/sells-group/buyergroup-cli/internal/scoring"
	"github.com/sells-group/buyergroup-cli/internal/store"
)

// errBudgetDenied marks a call the ledger refused mid-request. It never
// leaves the package: the request degrades instead of failing.
var errBudgetDenied = errors.New("orchestrator: budget denied")

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// CallTimeout bounds a single provider call. The tier deadline
	// bounds the whole request on top of this.
	CallTimeout time.Duration
	// Concurrency bounds the fan-out within one pipeline stage.
	Concurrency int
	// CacheTTL is the base result TTL before quality scaling.
	CacheTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 20 * time.Second,
		Concurrency: 4,
		CacheTTL:    15 * time.Minute,
	}
}

// Orchestrator coordinates one discovery pipeline per request. All
// shared mutable state lives in the ledger and the cache; everything
// else is per-request.
type Orchestrator struct {
	runner  *provider.Runner
	plans   *planner.Planner
	budget  *ledger.Ledger
	results cache.Cache
	fuser   *fusion.Fuser
	roles   *scoring.RoleScorer
	quality *scoring.QualityScorer
	archive store.Store
	seller  model.SellerContext
	cfg     Config
	nowFunc func() time.Time
}

// New wires an orchestrator with default fusion and scoring components.
func New(runner *provider.Runner, plans *planner.Planner, budget *ledger.Ledger, results cache.Cache, cfg Config) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if results == nil {
		results = cache.NewMemory()
	}
	return &Orchestrator{
		runner:  runner,
		plans:   plans,
		budget:  budget,
		results: results,
		fuser:   fusion.New(nil, 0),
		roles:   scoring.NewRoleScorer(scoring.DefaultWeights()),
		quality: scoring.NewQualityScorer(),
		seller:  model.DefaultSellerContext(),
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// WithSellerContext overrides the default selling motion.
func (o *Orchestrator) WithSellerContext(sc model.SellerContext) *Orchestrator {
	o.seller = sc
	return o
}

// WithFuser overrides the default fusion configuration.
func (o *Orchestrator) WithFuser(f *fusion.Fuser) *Orchestrator {
	o.fuser = f
	return o
}

// WithStore persists finished results in addition to caching them.
func (o *Orchestrator) WithStore(s store.Store) *Orchestrator {
	o.archive = s
	return o
}

// WithCache swaps the result cache backend.
func (o *Orchestrator) WithCache(c cache.Cache) *Orchestrator {
	o.results = c
	return o
}

// WithNow sets a fixed clock for testing.
func (o *Orchestrator) WithNow(now func() time.Time) *Orchestrator {
	o.nowFunc = now
	return o
}

// run is the mutable state of one discovery pipeline.
type run struct {
	mu       sync.Mutex
	req      model.EnrichmentRequest
	plan     *planner.Plan
	state    model.RequestState
	started  time.Time
	degraded bool
	warnings []string
	records  []model.RawRecord
	members  []model.Member
}

func (r *run) advance(next model.RequestState) {
	if !r.state.CanTransition(next) {
		zap.L().Warn("orchestrator: illegal state transition",
			zap.String("request", r.req.ID),
			zap.String("from", string(r.state)),
			zap.String("to", string(next)),
		)
	}
	r.state = next
}

func (r *run) warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *run) addRecords(recs []model.RawRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recs...)
}

// companyRef is the resolved target company handed to every later call.
type companyRef struct {
	ID     string
	Domain string
}

// Discover runs one buyer-group discovery request end to end. It always
// returns either a (possibly partial or degraded) result or a typed
// error, never a silent empty success.
func (o *Orchestrator) Discover(ctx context.Context, req model.EnrichmentRequest) (*model.BuyerGroupResult, error) {
	started := o.nowFunc()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Tier == "" {
		req.Tier = model.TierIdentify
	}

	key := cache.Key(req)
	if hit, ok := o.results.Get(ctx, key); ok {
		zap.L().Info("orchestrator: cache hit",
			zap.String("tenant", req.TenantID),
			zap.String("company", req.CompanyName),
			zap.String("tier", string(req.Tier)),
		)
		return hit, nil
	}

	plan, degraded, err := o.affordablePlan(req)
	if err != nil {
		return nil, err
	}

	r := &run{req: req, plan: plan, state: model.StatePlanned, started: started, degraded: degraded || plan.Trimmed}
	if degraded {
		r.warn(fmt.Sprintf("budget allows %s, requested %s", plan.Tier, req.Tier))
	}
	if plan.Trimmed {
		r.warn("call schedule trimmed to per-request cost cap")
	}

	ctx, cancel := context.WithDeadline(ctx, started.Add(plan.Tier.Deadline()))
	defer cancel()

	result, err := o.execute(ctx, r)
	if err != nil {
		return nil, err
	}

	if o.archive != nil {
		// Persist with a fresh context: the tier deadline must not
		// lose a finished result.
		if err := o.archive.SaveResult(context.Background(), result); err != nil {
			zap.L().Warn("orchestrator: persist result", zap.String("request", req.ID), zap.Error(err))
		}
	}
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 3*time.Second)
	o.results.Set(cacheCtx, key, result, cache.TTLFor(o.cfg.CacheTTL, cache.AverageQuality(result)))
	cacheCancel()

	zap.L().Info("orchestrator: request finished",
		zap.String("request", req.ID),
		zap.String("tier", string(result.Tier)),
		zap.String("state", string(result.State)),
		zap.Int("members", len(result.Members)),
		zap.Float64("cost_usd", result.TotalCostUSD),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// affordablePlan picks the deepest tier at or below the requested one
// whose estimate fits the tenant's remaining budget. An unaffordable
// identify tier is a hard failure.
func (o *Orchestrator) affordablePlan(req model.EnrichmentRequest) (*planner.Plan, bool, error) {
	remaining := o.budget.Remaining(req.TenantID)
	for tier := req.Tier; ; tier = downgrade(tier) {
		plan, err := o.plans.Plan(req, tier)
		if err != nil {
			return nil, false, wrapError(KindInternal, err, "plan request %s", req.ID)
		}
		if plan.EstimateUSD <= remaining {
			return plan, tier != req.Tier, nil
		}
		if tier == model.TierIdentify {
			return nil, false, newError(KindBudgetExceeded,
				"tenant %s has %.2f USD remaining, identify tier needs %.2f USD",
				req.TenantID, remaining, plan.EstimateUSD)
		}
	}
}

func downgrade(t model.Tier) model.Tier {
	if t == model.TierDeepResearch {
		return model.TierEnrich
	}
	return model.TierIdentify
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*model.BuyerGroupResult, error) {
	r.advance(model.StateFetching)

	company, err := o.resolveCompany(ctx, r)
	if err != nil {
		return nil, err
	}

	if err := o.searchCandidates(ctx, r, company); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return o.finish(r, model.StatePartial), nil
	}

	r.advance(model.StateFusing)
	fused := persons(o.fuser.Fuse(r.records))

	r.advance(model.StateScoring)
	r.members = o.assemble(fused)

	if r.plan.Tier.Rank() >= model.TierEnrich.Rank() && len(r.members) > 0 {
		o.perCandidate(ctx, r, company, planner.OpFindContact, planner.OpEnrichPerson)
		o.rebuild(r)
		if ctx.Err() != nil {
			return o.finish(r, model.StatePartial), nil
		}
	}
	if r.plan.Tier == model.TierDeepResearch && len(r.members) > 0 {
		// Research prompts read the enriched candidate, so this stage
		// runs after contact and person data have been fused in.
		o.perCandidate(ctx, r, company, planner.OpDeepResearch)
		o.rebuild(r)
		if ctx.Err() != nil {
			return o.finish(r, model.StatePartial), nil
		}
	}

	return o.finish(r, model.StateDone), nil
}

func (o *Orchestrator) resolveCompany(ctx context.Context, r *run) (companyRef, error) {
	var resolve *planner.ProviderCall
	for i := range r.plan.Calls {
		if r.plan.Calls[i].Operation == planner.OpResolveCompany {
			resolve = &r.plan.Calls[i]
			break
		}
	}
	if resolve == nil {
		return companyRef{}, newError(KindInternal, "plan %s has no resolve call", r.req.ID)
	}

	recs, err := o.call(ctx, r, *resolve, provider.Query{
		Operation:   resolve.Operation,
		TenantID:    r.req.TenantID,
		RequestID:   r.req.ID,
		CompanyName: r.req.CompanyName,
		Domain:      r.req.Website,
	})
	if errors.Is(err, errBudgetDenied) {
		return companyRef{}, newError(KindBudgetExceeded,
			"tenant %s cannot afford company resolution", r.req.TenantID)
	}
	if err != nil {
		return companyRef{}, wrapError(KindProviderUnavailable, err,
			"resolve company %q", r.req.CompanyName)
	}

	for _, rec := range recs {
		if rec.EntityType == model.EntityCompany {
			return companyRef{ID: rec.Str(model.FieldExternalID), Domain: rec.Str(model.FieldDomain)}, nil
		}
	}
	return companyRef{}, newError(KindCompanyNotFound,
		"no provider could resolve %q", r.req.CompanyName)
}

// searchCandidates fans out the planned candidate searches. A single
// failed search degrades completeness; the stage fails only when every
// search failed.
func (o *Orchestrator) searchCandidates(ctx context.Context, r *run, company companyRef) error {
	var searches []planner.ProviderCall
	for _, pc := range r.plan.Calls {
		if !pc.PerCandidate && pc.Operation == planner.OpSearchEmployees {
			searches = append(searches, pc)
		}
	}
	if len(searches) == 0 {
		return nil
	}

	var mu sync.Mutex
	failed := 0

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for _, pc := range searches {
		pc := pc
		g.Go(func() error {
			recs, err := o.call(ctx, r, pc, provider.Query{
				Operation:   pc.Operation,
				TenantID:    r.req.TenantID,
				RequestID:   r.req.ID,
				CompanyName: r.req.CompanyName,
				CompanyID:   company.ID,
				Domain:      company.Domain,
				Titles:      pc.Titles,
				Role:        pc.Role,
			})
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				if !errors.Is(err, errBudgetDenied) {
					zap.L().Warn("orchestrator: candidate search failed",
						zap.String("request", r.req.ID),
						zap.String("provider", pc.Provider),
						zap.String("role", string(pc.Role)),
						zap.Error(err),
					)
				}
				return nil
			}
			r.addRecords(recs)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors

	if failed == len(searches) && ctx.Err() == nil {
		return newError(KindProviderUnavailable,
			"all candidate searches failed for %q", r.req.CompanyName)
	}
	if failed > 0 {
		r.warn(fmt.Sprintf("%d of %d candidate searches failed", failed, len(searches)))
	}
	return nil
}

// perCandidate runs the named per-candidate operations for every
// selected member, bounded by the stage concurrency limit.
func (o *Orchestrator) perCandidate(ctx context.Context, r *run, company companyRef, operations ...string) {
	wanted := make(map[string]bool, len(operations))
	for _, op := range operations {
		wanted[op] = true
	}
	var calls []planner.ProviderCall
	for _, pc := range r.plan.Calls {
		if pc.PerCandidate && wanted[pc.Operation] {
			calls = append(calls, pc)
		}
	}
	if len(calls) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i := range r.members {
		cand := r.members[i].Candidate
		for _, pc := range calls {
			pc := pc
			cand := cand
			g.Go(func() error {
				recs, err := o.call(ctx, r, pc, provider.Query{
					Operation:   pc.Operation,
					TenantID:    r.req.TenantID,
					RequestID:   r.req.ID,
					CompanyName: r.req.CompanyName,
					CompanyID:   company.ID,
					Domain:      company.Domain,
					Candidate:   &cand,
				})
				if err != nil {
					if !errors.Is(err, errBudgetDenied) && ctx.Err() == nil {
						zap.L().Warn("orchestrator: candidate call failed",
							zap.String("request", r.req.ID),
							zap.String("provider", pc.Provider),
							zap.String("operation", pc.Operation),
							zap.String("candidate", cand.ID),
							zap.Error(err),
						)
					}
					return nil
				}
				r.addRecords(recs)
				return nil
			})
		}
	}
	g.Wait() //nolint:errcheck // goroutines never return errors
}

// call authorizes, executes and settles one provider call. The ledger
// reservation is released after the runner has recorded actuals.
func (o *Orchestrator) call(ctx context.Context, r *run, pc planner.ProviderCall, q provider.Query) ([]model.RawRecord, error) {
	ok, remaining := o.budget.Authorize(q.TenantID, pc.UnitUSD)
	if !ok {
		r.mu.Lock()
		if !r.degraded {
			r.degraded = true
			r.warnings = append(r.warnings,
				fmt.Sprintf("budget exhausted mid-request, %.2f USD remaining", remaining))
		}
		r.mu.Unlock()
		return nil, errBudgetDenied
	}
	defer o.budget.Release(q.TenantID, pc.UnitUSD)

	cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	return o.runner.Fetch(cctx, pc.Provider, q)
}

// assemble pairs role assignments with their candidates and attaches
// quality scores.
func (o *Orchestrator) assemble(candidates []model.FusedCandidate) []model.Member {
	byID := make(map[string]model.FusedCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	assignments := o.roles.Score(candidates, o.seller)
	members := make([]model.Member, 0, len(assignments))
	for _, a := range assignments {
		c, ok := byID[a.CandidateID]
		if !ok {
			continue
		}
		members = append(members, model.Member{Candidate: c, Role: a, Quality: o.quality.Score(c)})
	}
	return members
}

// rebuild re-fuses all records after a per-candidate stage and remaps
// the selected members onto their enriched candidates. Candidate IDs
// are identity-derived, so members match by ID; a name+employer
// fallback covers records whose identity key gained an external ID.
func (o *Orchestrator) rebuild(r *run) {
	fused := persons(o.fuser.Fuse(r.records))

	byID := make(map[string]model.FusedCandidate, len(fused))
	byName := make(map[string]model.FusedCandidate, len(fused))
	for _, c := range fused {
		byID[c.ID] = c
		byName[identityKey(c)] = c
	}

	for i := range r.members {
		m := &r.members[i]
		c, ok := byID[m.Candidate.ID]
		if !ok {
			c, ok = byName[identityKey(m.Candidate)]
		}
		if !ok {
			continue
		}
		m.Candidate = c
		m.Role.CandidateID = c.ID
		m.Quality = o.quality.Score(c)
	}
}

func identityKey(c model.FusedCandidate) string {
	return fusion.Normalize(c.Str(model.FieldName)) + "|" + fusion.Normalize(c.Str(model.FieldEmployer))
}

func persons(candidates []model.FusedCandidate) []model.FusedCandidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.EntityType == model.EntityPerson {
			out = append(out, c)
		}
	}
	return out
}

// finish snapshots the run into an immutable result. Total cost comes
// from the ledger, so cancelled calls that still charged are included.
func (o *Orchestrator) finish(r *run, state model.RequestState) *model.BuyerGroupResult {
	r.advance(state)
	now := o.nowFunc()

	assignments := make([]model.RoleAssignment, len(r.members))
	for i, m := range r.members {
		assignments[i] = m.Role
	}

	return &model.BuyerGroupResult{
		RequestID:     r.req.ID,
		TenantID:      r.req.TenantID,
		CompanyName:   r.req.CompanyName,
		Tier:          r.plan.Tier,
		State:         state,
		Members:       r.members,
		CohesionScore: scoring.Cohesion(assignments),
		TotalCostUSD:  o.budget.RequestTotal(r.req.ID),
		Elapsed:       now.Sub(r.started),
		Degraded:      r.degraded,
		Partial:       state == model.StatePartial,
		SourcesUsed:   sources(r.members),
		Warnings:      r.warnings,
		CompletedAt:   now,
	}
}

func sources(members []model.Member) []string {
	seen := make(map[string]bool)
	for _, m := range members {
		for _, p := range m.Candidate.Providers {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
