package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/risk"
)

// StrategyFunc is the capability bundle §9 calls for: a function pointer
// plus whatever opaque state the caller closed over, isolated from the
// machine's internal state. Any panic/error it raises is captured by the
// machine and reported as InvalidSignal/idle, never propagated.
type StrategyFunc func(ctx context.Context, symbol string) (*Spec, error)

// Sink receives out-of-band events the tick boundary can't return
// directly: errors and risk rejections (§7). A nil Sink just logs.
type Sink interface {
	OnError(err error)
	OnRejection(err error)
}

// Config bundles the engine-wide knobs §6 names.
type Config struct {
	Costs                Costs
	Thresholds           Thresholds
	ScheduleAwaitMinutes int
	AvgPriceCandlesCount int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Costs:                DefaultCosts(),
		ScheduleAwaitMinutes: 60,
		AvgPriceCandlesCount: 5,
	}
}

// Machine is the per-(strategy, symbol) signal lifecycle state machine
// (C5). It holds at most one scheduled and one pending signal and drives
// both through Tick (one timestamp at a time) and Batch (a backtest-only
// candle-array sweep) which must agree on every closure (§8 property 1).
type Machine struct {
	mu sync.Mutex

	symbol       string
	strategyName string
	exchangeName string
	riskName     string
	intervalMs   int64

	config Config
	source *candle.Source
	gate   *risk.Gate

	getSignal StrategyFunc
	sink      Sink
	newID     func() string

	stopped      bool
	lastSignalTs *int64
	scheduled    *Row
	pending      *Row

	log zerolog.Logger
}

// New builds a Machine for one (strategyName, symbol) pair.
func New(strategyName, symbol, exchangeName, riskName string, intervalMs int64, source *candle.Source, gate *risk.Gate, getSignal StrategyFunc, sink Sink, cfg Config) *Machine {
	return &Machine{
		symbol:       symbol,
		strategyName: strategyName,
		exchangeName: exchangeName,
		riskName:     riskName,
		intervalMs:   intervalMs,
		config:       cfg,
		source:       source,
		gate:         gate,
		getSignal:    getSignal,
		sink:         sink,
		newID:        func() string { return uuid.NewString() },
		log: log.With().
			Str("component", "signal.Machine").
			Str("strategy", strategyName).
			Str("symbol", symbol).
			Logger(),
	}
}

// Stop sets the soft-stop flag (§4.5.6): no new signals are generated, but
// any scheduled/pending signal continues to its natural terminal state.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Stopped reports whether Stop has been called.
func (m *Machine) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// HasOpenSignal reports whether a scheduled or pending signal exists.
func (m *Machine) HasOpenSignal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled != nil || m.pending != nil
}

// Restore seeds the machine's in-flight signal from a persisted row (C9),
// used on live-driver startup. kind must be KindScheduled or KindPending.
func (m *Machine) Restore(row Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch row.Kind {
	case KindScheduled:
		m.scheduled = &row
	case KindPending:
		m.pending = &row
	}
}

// Tick drives the machine forward one timestamp (§4.5.1-4.5.4). now is a
// millisecond epoch; mode does not change the machine's behaviour, since
// the price comparisons themselves are always VWAP-scalar based outside of
// Batch (candle-range comparisons are exclusive to the batch path, §4.5.5).
func (m *Machine) Tick(ctx context.Context, now int64, mode Mode) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped && m.scheduled == nil && m.pending == nil {
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}

	throttled := m.lastSignalTs != nil && now-*m.lastSignalTs < m.intervalMs
	if !throttled {
		ts := now
		m.lastSignalTs = &ts
	}

	if m.scheduled == nil && m.pending == nil {
		if throttled {
			return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
		}
		return m.generate(ctx, now)
	}

	vwap, err := m.currentPrice(ctx, now)
	if err != nil {
		m.reportError(err)
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}
	pw := PriceWindow{Low: vwap, High: vwap, Current: vwap}

	if m.scheduled != nil {
		return m.evalScheduledStep(now, pw)
	}
	return m.evalPendingStep(now, vwap)
}

// PriceWindow is the low/high/current triple scheduled monitoring
// evaluates against. In live/tick mode Low == High == Current (a scalar
// VWAP); in Batch, Low/High come from the candle's range.
type PriceWindow struct {
	Low, High, Current float64
}

func (m *Machine) currentPrice(ctx context.Context, now int64) (float64, error) {
	n := m.config.AvgPriceCandlesCount
	if n <= 0 {
		n = 5
	}
	return m.source.GetAveragePrice(ctx, m.symbol, candle.Interval1m, now, n)
}

func (m *Machine) reportError(err error) {
	m.log.Warn().Err(err).Msg("tick error, continuing with idle")
	if m.sink != nil {
		m.sink.OnError(err)
	}
}

func (m *Machine) reportRejection(err error) {
	m.log.Debug().Err(err).Msg("signal rejected by risk gate")
	if m.sink != nil {
		m.sink.OnRejection(err)
	}
}

// generate implements §4.5.2: called only when neither scheduled nor
// pending exists and the throttle allows an attempt this tick.
func (m *Machine) generate(ctx context.Context, now int64) Result {
	price, err := m.currentPrice(ctx, now)
	if err != nil {
		m.reportError(err)
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}

	riskCtx := risk.Context{
		Symbol:       m.symbol,
		StrategyName: m.strategyName,
		ExchangeName: m.exchangeName,
		CurrentPrice: price,
		Timestamp:    now,
	}
	if err := m.gate.Check(m.riskName, riskCtx); err != nil {
		m.reportRejection(err)
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}

	spec, err := m.callStrategy(ctx)
	if err != nil {
		m.reportError(&ErrInvalid{Reasons: []string{err.Error()}})
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}
	if spec == nil {
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}

	row := m.stamp(spec, now, price)
	if err := Validate(row, m.config.Thresholds); err != nil {
		m.reportError(err)
		return Idle{Symbol: m.symbol, StrategyName: m.strategyName, ExchangeName: m.exchangeName}
	}

	if spec.PriceOpen == nil {
		row.Kind = KindPending
		m.pending = &row
		m.gate.Add(m.strategyName, m.riskName)
		return Opened{Signal: row, CurrentPrice: row.PriceOpen}
	}

	row.Kind = KindScheduled
	m.scheduled = &row
	return Scheduled{Signal: row, CurrentPrice: price}
}

// callStrategy invokes the user strategy function, converting a panic
// into an error per §7 (strategy-level code may throw; it must not crash
// the tick).
func (m *Machine) callStrategy(ctx context.Context) (spec *Spec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return m.getSignal(ctx, m.symbol)
}

func (m *Machine) stamp(spec *Spec, now int64, currentPrice float64) Row {
	priceOpen := currentPrice
	if spec.PriceOpen != nil {
		priceOpen = *spec.PriceOpen
	}
	return Row{
		ID:                  m.newID(),
		Symbol:              m.symbol,
		StrategyName:        m.strategyName,
		ExchangeName:        m.exchangeName,
		Timestamp:           now,
		Position:            spec.Position,
		PriceOpen:           priceOpen,
		PriceTakeProfit:     spec.PriceTakeProfit,
		PriceStopLoss:       spec.PriceStopLoss,
		MinuteEstimatedTime: spec.MinuteEstimatedTime,
		Note:                spec.Note,
	}
}

// evalScheduledStep implements §4.5.3's priority order: timeout, then
// stop-loss-before-activation, then activation, else active.
func (m *Machine) evalScheduledStep(now int64, pw PriceWindow) Result {
	s := m.scheduled
	awaitMs := int64(m.config.ScheduleAwaitMinutes) * 60_000

	if now-s.Timestamp >= awaitMs {
		row := *s
		m.scheduled = nil
		return Cancelled{Signal: row, CurrentPrice: pw.Current, CloseTimestamp: now, Reason: CancelTimeout}
	}

	var stopLossHit, activated bool
	if s.Position == Long {
		stopLossHit = pw.Low <= s.PriceStopLoss
		activated = pw.Low <= s.PriceOpen
	} else {
		stopLossHit = pw.High >= s.PriceStopLoss
		activated = pw.High >= s.PriceOpen
	}

	if stopLossHit {
		row := *s
		m.scheduled = nil
		return Cancelled{Signal: row, CurrentPrice: pw.Current, CloseTimestamp: now, Reason: CancelStopLossBeforeOpen}
	}

	if activated {
		row := *s
		row.Kind = KindPending
		m.pending = &row
		m.scheduled = nil
		m.gate.Add(m.strategyName, m.riskName)
		return Opened{Signal: row, CurrentPrice: row.PriceOpen}
	}

	return Active{Signal: *s, CurrentPrice: pw.Current}
}

// evalPendingStep implements §4.5.4's priority order: time expiry, then
// take-profit, then stop-loss.
func (m *Machine) evalPendingStep(now int64, vwap float64) Result {
	p := m.pending
	expired := now >= p.Timestamp+int64(p.MinuteEstimatedTime)*60_000

	var takeProfitHit, stopLossHit bool
	if p.Position == Long {
		takeProfitHit = vwap >= p.PriceTakeProfit
		stopLossHit = vwap <= p.PriceStopLoss
	} else {
		takeProfitHit = vwap <= p.PriceTakeProfit
		stopLossHit = vwap >= p.PriceStopLoss
	}

	var reason CloseReason
	switch {
	case expired:
		reason = CloseTimeExpired
	case takeProfitHit:
		reason = CloseTakeProfit
	case stopLossHit:
		reason = CloseStopLoss
	default:
		return Active{Signal: *p, CurrentPrice: vwap}
	}

	return m.close(now, vwap, reason)
}

func (m *Machine) close(now int64, vwap float64, reason CloseReason) Result {
	p := m.pending
	pnl := Compute(p.Position, p.PriceOpen, vwap, m.config.Costs)
	m.gate.Remove(m.strategyName, m.riskName)
	m.pending = nil
	row := *p
	return Closed{Signal: row, CurrentPrice: vwap, CloseTimestamp: now, CloseReason: reason, PnL: pnl}
}

// Batch implements §4.5.5: the backtest-only fast path that sweeps a
// contiguous 1-minute candle array, starting at the signal's creation
// minute, in one call instead of one Tick per minute. Requires that
// either a scheduled or a pending signal already exists.
func (m *Machine) Batch(candles []candle.Candle) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(candles) == 0 {
		panic("signal: Batch called with no candles")
	}
	if m.scheduled == nil && m.pending == nil {
		panic("signal: Batch requires a scheduled or pending signal")
	}

	remaining := candles
	if m.scheduled != nil {
		activationIdx := -1
		var terminal Result
		for i, c := range candles {
			pw := PriceWindow{Low: c.Low, High: c.High, Current: c.Close}
			res := m.evalScheduledStep(c.OpenTime, pw)
			switch v := res.(type) {
			case Cancelled:
				return v
			case Opened:
				activationIdx = i
				terminal = v
			}
			if activationIdx >= 0 {
				break
			}
		}
		if activationIdx < 0 {
			s := m.scheduled
			m.scheduled = nil
			last := candles[len(candles)-1]
			return Cancelled{Signal: *s, CurrentPrice: last.Close, CloseTimestamp: last.OpenTime, Reason: CancelNotActivated}
		}
		_ = terminal // activation result itself isn't returned; batch continues to monitor
		remaining = candles[activationIdx:]
	}

	for i := 4; i < len(remaining); i++ {
		window := remaining[i-4 : i+1]
		vwap, ok := candle.AveragePrice(window)
		if !ok {
			continue
		}
		res := m.evalPendingStep(remaining[i].OpenTime, vwap)
		if closed, ok := res.(Closed); ok {
			return closed
		}
	}

	last := len(remaining) - 1
	from := last - 4
	if from < 0 {
		from = 0
	}
	window := remaining[from : last+1]
	vwap, _ := candle.AveragePrice(window)
	return m.close(remaining[last].OpenTime, vwap, CloseTimeExpired)
}
