// Package risk implements the per-(strategy, risk profile) active-position
// gate (C3): a count of open positions, checked against a user-supplied
// predicate list before a new signal is allowed to open.
package risk

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Context is the information a predicate is evaluated against (§6 risk
// schema: ctx = { symbol, strategyName, exchangeName, currentPrice,
// timestamp, activePositionCount }).
type Context struct {
	Symbol              string
	StrategyName        string
	ExchangeName        string
	CurrentPrice        float64
	Timestamp           int64
	ActivePositionCount int
}

// Predicate evaluates whether a signal should be rejected. A non-nil
// returned error is surfaced to the caller as the rejection reason.
type Predicate func(ctx Context) error

// ErrRejected is the §7 "RiskRejection" kind: normal control flow, not an
// error condition, but still represented as an error so callers can use
// errors.As to distinguish it from AdapterError/InvalidSignal.
type ErrRejected struct {
	Reason string
}

func (e *ErrRejected) Error() string { return "risk rejected: " + e.Reason }

type key struct {
	strategyName string
	riskName     string
}

var (
	activePositionsGauge *prometheus.GaugeVec
	gaugeOnce            sync.Once
)

func activeGauge() *prometheus.GaugeVec {
	gaugeOnce.Do(func() {
		activePositionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalengine_risk_active_positions",
			Help: "Active position count per strategy/risk profile",
		}, []string{"strategy", "risk"})
	})
	return activePositionsGauge
}

// Gate tracks active position counts keyed by (strategyName, riskName) and
// runs a risk profile's predicates against it before a signal opens.
// Absence of a configured risk profile (no predicates registered under
// that name) means Check is the constant true, per §4.3.
type Gate struct {
	mu         sync.Mutex
	counts     map[key]int
	predicates map[string][]Predicate // keyed by riskName
	gauge      *prometheus.GaugeVec
}

// NewGate builds an empty Gate.
func NewGate() *Gate {
	return &Gate{
		counts:     make(map[key]int),
		predicates: make(map[string][]Predicate),
		gauge:      activeGauge(),
	}
}

// Register adds a risk profile's predicate list under riskName. Calling
// Register again for the same name appends to, rather than replaces, its
// predicates.
func (g *Gate) Register(riskName string, predicates ...Predicate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.predicates[riskName] = append(g.predicates[riskName], predicates...)
}

// Check runs every predicate registered for riskName with the current
// active position count filled in. Check does not mutate state — callers
// must call Add once the position actually opens.
func (g *Gate) Check(riskName string, ctx Context) error {
	g.mu.Lock()
	ctx.ActivePositionCount = g.counts[key{ctx.StrategyName, riskName}]
	predicates := g.predicates[riskName]
	g.mu.Unlock()

	for _, p := range predicates {
		if err := p(ctx); err != nil {
			return &ErrRejected{Reason: err.Error()}
		}
	}
	return nil
}

// Add increments the active position count for (strategyName, riskName),
// called exactly when a signal transitions to pending.
func (g *Gate) Add(strategyName, riskName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key{strategyName, riskName}
	g.counts[k]++
	g.gauge.WithLabelValues(strategyName, riskName).Set(float64(g.counts[k]))
}

// Remove decrements the active position count for (strategyName,
// riskName), called on closed/cancelled-from-pending transitions. The
// count never goes negative.
func (g *Gate) Remove(strategyName, riskName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key{strategyName, riskName}
	if g.counts[k] > 0 {
		g.counts[k]--
	}
	g.gauge.WithLabelValues(strategyName, riskName).Set(float64(g.counts[k]))
}

// Count returns the current active position count for (strategyName,
// riskName).
func (g *Gate) Count(strategyName, riskName string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[key{strategyName, riskName}]
}
