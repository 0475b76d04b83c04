package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyergroup-cli/internal/ledger"
	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/resilience"
)

// Observer is notified after every provider call. The monitoring package
// implements it; a nil observer is a no-op.
type Observer interface {
	CallCompleted(provider, operation string, costUSD float64, elapsed time.Duration, err error)
}

// Runner executes adapter calls with per-provider rate limiting, retry,
// circuit breaking and ledger accounting. It is the only path through
// which the pipeline talks to adapters.
type Runner struct {
	registry *Registry
	ledger   *ledger.Ledger
	retry    resilience.RetryConfig
	observer Observer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*resilience.CircuitBreaker
	rps      float64
	burst    int
}

// NewRunner creates a runner. rps and burst bound each provider's call
// rate; zero values default to 5 rps with a burst of 5.
func NewRunner(registry *Registry, lg *ledger.Ledger, rps float64, burst int) *Runner {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 5
	}
	return &Runner{
		registry: registry,
		ledger:   lg,
		retry:    resilience.DefaultRetryConfig(),
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*resilience.CircuitBreaker),
		rps:      rps,
		burst:    burst,
	}
}

// WithObserver attaches a call observer.
func (r *Runner) WithObserver(obs Observer) *Runner {
	r.observer = obs
	return r
}

// Fetch runs one query against the named adapter. Whatever the call's
// outcome, any cost the provider charged is recorded in the ledger before
// Fetch returns; a failed or cancelled call that charged still produces
// exactly one ledger entry.
func (r *Runner) Fetch(ctx context.Context, providerName string, q Query) ([]model.RawRecord, error) {
	adapter := r.registry.Get(providerName)
	if adapter == nil {
		return nil, eris.Errorf("provider: %s not registered", providerName)
	}

	if err := r.limiter(providerName).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "provider: rate limit wait")
	}

	start := time.Now()
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(providerName, q.Operation)

	type outcome struct {
		records []model.RawRecord
		cost    float64
	}
	breaker := r.breaker(providerName)
	out, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (outcome, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (outcome, error) {
			records, cost, err := adapter.Fetch(ctx, q)
			if cost > 0 {
				r.record(q, providerName, cost)
			}
			return outcome{records: records, cost: cost}, err
		})
	})

	elapsed := time.Since(start)
	if r.observer != nil {
		r.observer.CallCompleted(providerName, q.Operation, out.cost, elapsed, err)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "provider: %s %s", providerName, q.Operation)
	}

	zap.L().Debug("provider: call complete",
		zap.String("provider", providerName),
		zap.String("operation", q.Operation),
		zap.Int("records", len(out.records)),
		zap.Float64("cost_usd", out.cost),
		zap.Duration("elapsed", elapsed),
	)
	return out.records, nil
}

// record writes the charge the call incurred. Ledger persistence uses a
// background context so a cancelled request still captures its cost.
func (r *Runner) record(q Query, providerName string, cost float64) {
	entry := model.CostLedgerEntry{
		ID:        uuid.NewString(),
		TenantID:  q.TenantID,
		Provider:  providerName,
		RequestID: q.RequestID,
		AmountUSD: cost,
		ChargedAt: time.Now(),
	}
	if err := r.ledger.Record(context.Background(), entry); err != nil {
		zap.L().Error("provider: ledger record failed",
			zap.String("provider", providerName),
			zap.String("request", q.RequestID),
			zap.Float64("amount_usd", cost),
			zap.Error(err),
		)
	}
}

func (r *Runner) limiter(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.rps), r.burst)
		r.limiters[name] = l
	}
	return l
}

func (r *Runner) breaker(name string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("provider: circuit state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		b = resilience.NewCircuitBreaker(cfg)
		r.breakers[name] = b
	}
	return b
}
