// Package ledger tracks per-tenant provider spend and authorizes planned
// calls against rolling daily and monthly budget windows.
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Sink receives append-only ledger entries for persistence and for the
// external billing/alerting collaborator.
type Sink interface {
	Append(ctx context.Context, entry model.CostLedgerEntry) error
}

// Caps holds tenant budget caps.
type Caps struct {
	DailyUSD   float64
	MonthlyUSD float64
	// WarnFraction of either window's cap triggers a warning log. Default 0.8.
	WarnFraction float64
}

// tenantWindow tracks one tenant's rolling spend. reserved covers
// authorized-but-unsettled estimates so that two concurrent requests
// cannot both pass a check only one can afford.
type tenantWindow struct {
	day        string
	month      string
	daySpent   float64
	monthSpent float64
	reserved   float64
	warned     bool
}

// Ledger is the only shared mutable spend state across concurrent
// requests. All access goes through Authorize/Record/Release.
type Ledger struct {
	mu      sync.Mutex
	caps    Caps
	tenants map[string]*tenantWindow
	byReq   map[string]float64
	sink    Sink
	nowFunc func() time.Time
}

// New creates a ledger with the given caps and entry sink. A nil sink
// keeps entries in memory only.
func New(caps Caps, sink Sink) *Ledger {
	if caps.WarnFraction <= 0 {
		caps.WarnFraction = 0.8
	}
	return &Ledger{
		caps:    caps,
		tenants: make(map[string]*tenantWindow),
		byReq:   make(map[string]float64),
		sink:    sink,
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (l *Ledger) WithNow(now func() time.Time) *Ledger {
	l.nowFunc = now
	return l
}

// Authorize checks whether a planned call with the given estimated cost
// fits the tenant's remaining budget, and reserves the estimate when it
// does. Callers must pair every successful Authorize with a Release once
// the actual cost has been recorded. Returns the remaining headroom of
// the tighter window.
func (l *Ledger) Authorize(tenantID string, estimate float64) (bool, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(tenantID)
	remaining := l.remainingLocked(w)

	if estimate > remaining {
		zap.L().Warn("budget: call blocked",
			zap.String("tenant", tenantID),
			zap.Float64("estimate", estimate),
			zap.Float64("remaining", remaining),
		)
		return false, remaining
	}

	w.reserved += estimate
	return true, remaining - estimate
}

// Release returns an unused reservation to the tenant's budget. Call it
// after Record, or when an authorized call never executed.
func (l *Ledger) Release(tenantID string, estimate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(tenantID)
	w.reserved -= estimate
	if w.reserved < 0 {
		w.reserved = 0
	}
}

// Record appends an actual charge. It is called for every chargeable
// provider call, including failed and cancelled ones that still incurred
// provider-side cost.
func (l *Ledger) Record(ctx context.Context, entry model.CostLedgerEntry) error {
	l.mu.Lock()
	w := l.window(entry.TenantID)
	w.daySpent += entry.AmountUSD
	w.monthSpent += entry.AmountUSD
	l.byReq[entry.RequestID] += entry.AmountUSD

	warn := !w.warned && l.atWarnLevelLocked(w)
	if warn {
		w.warned = true
	}
	daySpent, monthSpent := w.daySpent, w.monthSpent
	l.mu.Unlock()

	if warn {
		zap.L().Warn("budget: tenant approaching spend cap",
			zap.String("tenant", entry.TenantID),
			zap.Float64("day_spent", daySpent),
			zap.Float64("month_spent", monthSpent),
		)
	}

	if l.sink != nil {
		return l.sink.Append(ctx, entry)
	}
	return nil
}

// RequestTotal returns the sum of recorded charges for one request.
func (l *Ledger) RequestTotal(requestID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byReq[requestID]
}

// Remaining returns the tenant's current headroom without reserving.
func (l *Ledger) Remaining(tenantID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked(l.window(tenantID))
}

// window returns the tenant's window, rolling it over when the day or
// month has changed since the last access.
func (l *Ledger) window(tenantID string) *tenantWindow {
	now := l.nowFunc()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	w, ok := l.tenants[tenantID]
	if !ok {
		w = &tenantWindow{day: day, month: month}
		l.tenants[tenantID] = w
		return w
	}
	if w.day != day {
		w.day = day
		w.daySpent = 0
		w.warned = false
	}
	if w.month != month {
		w.month = month
		w.monthSpent = 0
		w.warned = false
	}
	return w
}

func (l *Ledger) remainingLocked(w *tenantWindow) float64 {
	dayLeft := l.caps.DailyUSD - w.daySpent - w.reserved
	monthLeft := l.caps.MonthlyUSD - w.monthSpent - w.reserved
	left := dayLeft
	if monthLeft < left {
		left = monthLeft
	}
	if left < 0 {
		left = 0
	}
	return left
}

func (l *Ledger) atWarnLevelLocked(w *tenantWindow) bool {
	return w.daySpent >= l.caps.DailyUSD*l.caps.WarnFraction ||
		w.monthSpent >= l.caps.MonthlyUSD*l.caps.WarnFraction
}
