package candle

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker state labels for Prometheus metrics.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Default exchange circuit breaker thresholds.
const (
	ExchangeMinRequests     = 5
	ExchangeFailureRatio    = 0.6
	ExchangeOpenTimeout     = 30 * time.Second
	ExchangeHalfOpenMaxReqs = 3
	ExchangeCountInterval   = 10 * time.Second
)

// BreakerMetrics holds the Prometheus series shared by every breaker
// instance in the process.
type BreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalMetrics *BreakerMetrics
	metricsOnce   sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &BreakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "signalengine_circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalengine_circuit_breaker_requests_total",
					Help: "Total requests observed by the circuit breaker",
				},
				[]string{"service", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalengine_circuit_breaker_failures_total",
					Help: "Total failures tracked by the circuit breaker",
				},
				[]string{"service"},
			),
		}
	})
}

// RecordRequest updates the request/failure counters for a service.
func (m *BreakerMetrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// ExchangeBreaker wraps the exchange adapter's candle/price calls in a
// gobreaker circuit breaker so a flapping adapter cannot be hammered every
// tick (§7: AdapterError must never crash the tick loop, and retrying into
// a dead adapter on every tick is its own failure mode).
type ExchangeBreaker struct {
	cb      *gobreaker.CircuitBreaker
	metrics *BreakerMetrics
}

// BreakerSettings configures one ExchangeBreaker instance.
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultBreakerSettings returns the exchange circuit breaker defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     ExchangeMinRequests,
		FailureRatio:    ExchangeFailureRatio,
		OpenTimeout:     ExchangeOpenTimeout,
		HalfOpenMaxReqs: ExchangeHalfOpenMaxReqs,
		CountInterval:   ExchangeCountInterval,
	}
}

// NewExchangeBreaker builds a named circuit breaker (one per exchange
// adapter instance, so a single symbol's flapping adapter doesn't trip
// every other exchange sharing the process).
func NewExchangeBreaker(name string, settings BreakerSettings) *ExchangeBreaker {
	initMetrics()
	b := &ExchangeBreaker{metrics: globalMetrics}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && ratio >= settings.FailureRatio
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			b.updateState(name, to)
		},
	})
	b.updateState(name, b.cb.State())
	return b
}

// NewPassthroughBreaker returns a breaker that never trips, for use in
// backtest mode where the adapter is an in-memory fixture.
func NewPassthroughBreaker(name string) *ExchangeBreaker {
	initMetrics()
	b := &ExchangeBreaker{metrics: globalMetrics}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1000,
		Timeout:     time.Millisecond,
		ReadyToTrip: func(gobreaker.Counts) bool { return false },
	})
	return b
}

func (b *ExchangeBreaker) updateState(service string, s gobreaker.State) {
	var v float64
	switch s {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	b.metrics.state.WithLabelValues(service).Set(v)
}

// Execute runs fn through the breaker, recording success/failure metrics.
func Execute[T any](b *ExchangeBreaker, name string, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	b.metrics.RecordRequest(name, err == nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
