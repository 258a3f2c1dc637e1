package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/risk"
)

// seriesAdapter serves 1-minute candles from a flat array indexed so that
// OpenTime = (i-warmup)*60_000, giving `warmup` candles of history before
// logical minute 0 so VWAP windows always have enough inputs.
type seriesAdapter struct {
	warmup  int
	candles []candle.Candle
}

func newSeriesAdapter(warmup int, closes []float64) *seriesAdapter {
	candles := make([]candle.Candle, 0, warmup+len(closes))
	for i := 0; i < warmup; i++ {
		candles = append(candles, candle.Candle{
			OpenTime: int64(i-warmup) * 60_000,
			Open:     closes[0], High: closes[0], Low: closes[0], Close: closes[0],
			Volume: 1,
		})
	}
	for i, c := range closes {
		candles = append(candles, candle.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c, High: c, Low: c, Close: c,
			Volume: 1,
		})
	}
	return &seriesAdapter{warmup: warmup, candles: candles}
}

func (a *seriesAdapter) GetCandles(_ context.Context, _ string, _ candle.Interval, endTime int64, count int) ([]candle.Candle, error) {
	idx := int(endTime/60_000) + a.warmup
	start := idx - count + 1
	if start < 0 || idx >= len(a.candles) {
		return nil, errors.New("out of range")
	}
	return a.candles[start : idx+1], nil
}

func (a *seriesAdapter) FormatPrice(_ string, _ float64) (string, error)    { return "", nil }
func (a *seriesAdapter) FormatQuantity(_ string, _ float64) (string, error) { return "", nil }

type testSink struct {
	errors     []error
	rejections []error
}

func (s *testSink) OnError(err error)     { s.errors = append(s.errors, err) }
func (s *testSink) OnRejection(err error) { s.rejections = append(s.rejections, err) }

func newTestMachine(getSignal StrategyFunc, adapter candle.Adapter, sink Sink) *Machine {
	src := candle.NewSource("test", adapter, nil, nil)
	gate := risk.NewGate()
	cfg := DefaultConfig()
	return New("strat1", "BTCUSDT", "test-exchange", "", 60_000, src, gate, getSignal, sink, cfg)
}

func ptr(f float64) *float64 { return &f }

func TestMachine_MarketLongTakeProfit(t *testing.T) {
	closes := make([]float64, 90)
	for i := range closes {
		closes[i] = 50000 + float64(i)*40
	}
	adapter := newSeriesAdapter(4, closes)

	called := false
	getSignal := func(_ context.Context, _ string) (*Spec, error) {
		if called {
			return nil, nil
		}
		called = true
		return &Spec{
			Position:            Long,
			PriceTakeProfit:     51000,
			PriceStopLoss:       49000,
			MinuteEstimatedTime: 60,
		}, nil
	}

	m := newTestMachine(getSignal, adapter, nil)

	opened := m.Tick(context.Background(), 0, ModeBacktest)
	o, ok := opened.(Opened)
	require.True(t, ok, "expected Opened, got %#v", opened)
	assert.InDelta(t, 50000, o.CurrentPrice, 1e-6)

	var closed Closed
	found := false
	for minute := int64(1); minute <= 60 && !found; minute++ {
		res := m.Tick(context.Background(), minute*60_000, ModeBacktest)
		if c, ok := res.(Closed); ok {
			closed = c
			found = true
		}
	}
	require.True(t, found, "expected a closed result before expiry")
	assert.Equal(t, CloseTakeProfit, closed.CloseReason)
	assert.Greater(t, closed.PnL.PnLPercentage, 0.0)
}

func TestMachine_ScheduledBatch_CancelBeforeActivate(t *testing.T) {
	m := newTestMachine(nil, newSeriesAdapter(4, []float64{50000}), nil)
	m.scheduled = &Row{
		Symbol: "BTCUSDT", StrategyName: "strat1", Position: Long,
		PriceOpen: 42000, PriceTakeProfit: 45000, PriceStopLoss: 41000,
		MinuteEstimatedTime: 60, Timestamp: 0, Kind: KindScheduled,
	}

	candles := []candle.Candle{
		{OpenTime: 0, Open: 42000, High: 43000, Low: 40500, Close: 42500},
		{OpenTime: 60_000, Open: 42500, High: 44000, Low: 42000, Close: 43500},
	}

	res := m.Batch(candles)
	cancelled, ok := res.(Cancelled)
	require.True(t, ok, "expected Cancelled, got %#v", res)
	assert.Equal(t, CancelStopLossBeforeOpen, cancelled.Reason)
	assert.Nil(t, m.pending)
}

func TestMachine_ScheduledBatch_ActivateThenTakeProfit(t *testing.T) {
	m := newTestMachine(nil, newSeriesAdapter(4, []float64{50000}), nil)
	m.scheduled = &Row{
		Symbol: "BTCUSDT", StrategyName: "strat1", Position: Long,
		PriceOpen: 42000, PriceTakeProfit: 45000, PriceStopLoss: 41000,
		MinuteEstimatedTime: 600, Timestamp: 0, Kind: KindScheduled,
	}

	candles := []candle.Candle{
		{OpenTime: 0, Open: 42100, High: 42200, Low: 41800, Close: 42000},
	}
	for i := 1; i <= 10; i++ {
		price := 42000 + float64(i)*400
		candles = append(candles, candle.Candle{
			OpenTime: int64(i) * 60_000, Open: price, High: price, Low: price, Close: price, Volume: 1,
		})
	}

	res := m.Batch(candles)
	closed, ok := res.(Closed)
	require.True(t, ok, "expected Closed, got %#v", res)
	assert.Equal(t, CloseTakeProfit, closed.CloseReason)
}

func TestMachine_PendingBatch_TimeExpiredWhenNoLevelHit(t *testing.T) {
	m := newTestMachine(nil, newSeriesAdapter(4, []float64{50000}), nil)
	m.pending = &Row{
		Symbol: "BTCUSDT", StrategyName: "strat1", Position: Long,
		PriceOpen: 50000, PriceTakeProfit: 60000, PriceStopLoss: 40000,
		MinuteEstimatedTime: 10, Timestamp: 0, Kind: KindPending,
	}

	candles := make([]candle.Candle, 12)
	for i := range candles {
		candles[i] = candle.Candle{OpenTime: int64(i) * 60_000, Open: 50050, High: 50050, Low: 50050, Close: 50050, Volume: 1}
	}

	res := m.Batch(candles)
	closed, ok := res.(Closed)
	require.True(t, ok, "expected Closed, got %#v", res)
	assert.Equal(t, CloseTimeExpired, closed.CloseReason)
}

func TestMachine_ShortStopLoss(t *testing.T) {
	closes := make([]float64, 90)
	for i := range closes {
		closes[i] = 50000 + float64(i)*30 // rising price hurts a short
	}
	adapter := newSeriesAdapter(4, closes)

	called := false
	getSignal := func(_ context.Context, _ string) (*Spec, error) {
		if called {
			return nil, nil
		}
		called = true
		return &Spec{
			Position:            Short,
			PriceTakeProfit:     49000,
			PriceStopLoss:       51000,
			MinuteEstimatedTime: 60,
		}, nil
	}

	m := newTestMachine(getSignal, adapter, nil)
	opened := m.Tick(context.Background(), 0, ModeBacktest)
	_, ok := opened.(Opened)
	require.True(t, ok)

	var closed Closed
	found := false
	for minute := int64(1); minute <= 60 && !found; minute++ {
		res := m.Tick(context.Background(), minute*60_000, ModeBacktest)
		if c, ok := res.(Closed); ok {
			closed = c
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, CloseStopLoss, closed.CloseReason)
	assert.Less(t, closed.PnL.PnLPercentage, 0.0)
}

// TestMachine_TickByTick_And_Batch_AgreeOnTerminalResult exercises §8
// Property 1: replaying a candle series one Tick at a time must reach the
// same terminal result as collapsing that same series into one Batch call.
func TestMachine_TickByTick_And_Batch_AgreeOnTerminalResult(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50000 + float64(i)*50 // crosses the 51000 take-profit partway through
	}
	pendingRow := func() Row {
		return Row{
			Symbol: "BTCUSDT", StrategyName: "strat1", ExchangeName: "test-exchange",
			Position: Long, PriceOpen: 50000, PriceTakeProfit: 51000, PriceStopLoss: 49000,
			MinuteEstimatedTime: 30, Timestamp: 0, Kind: KindPending,
		}
	}

	tickMachine := newTestMachine(nil, newSeriesAdapter(4, closes), nil)
	row := pendingRow()
	tickMachine.pending = &row

	var tickClosed Closed
	foundTick := false
	for minute := int64(0); minute <= int64(len(closes)-1) && !foundTick; minute++ {
		res := tickMachine.Tick(context.Background(), minute*60_000, ModeBacktest)
		if c, ok := res.(Closed); ok {
			tickClosed = c
			foundTick = true
		}
	}
	require.True(t, foundTick, "expected tick-by-tick replay to close")

	batchMachine := newTestMachine(nil, newSeriesAdapter(4, closes), nil)
	batchRow := pendingRow()
	batchMachine.pending = &batchRow

	candles := make([]candle.Candle, len(closes))
	for i, c := range closes {
		candles[i] = candle.Candle{OpenTime: int64(i) * 60_000, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	res := batchMachine.Batch(candles)
	batchClosed, ok := res.(Closed)
	require.True(t, ok, "expected batch sweep to close")

	assert.Equal(t, tickClosed.CloseReason, batchClosed.CloseReason)
	assert.Equal(t, tickClosed.CloseTimestamp, batchClosed.CloseTimestamp)
	assert.InDelta(t, tickClosed.PnL.PnLPercentage, batchClosed.PnL.PnLPercentage, 1e-9)
}

func TestMachine_RiskRejection(t *testing.T) {
	src := candle.NewSource("test", newSeriesAdapter(4, []float64{50000}), nil, nil)
	gate := risk.NewGate()
	gate.Register("capped", func(ctx risk.Context) error {
		if ctx.ActivePositionCount >= 1 {
			return errors.New("at capacity")
		}
		return nil
	})
	gate.Add("strat1", "capped")

	getSignal := func(_ context.Context, _ string) (*Spec, error) {
		return &Spec{Position: Long, PriceTakeProfit: 51000, PriceStopLoss: 49000, MinuteEstimatedTime: 60}, nil
	}

	sink := &testSink{}
	cfg := DefaultConfig()
	m := New("strat1", "BTCUSDT", "test-exchange", "capped", 60_000, src, gate, getSignal, sink, cfg)

	res := m.Tick(context.Background(), 0, ModeBacktest)
	_, ok := res.(Idle)
	require.True(t, ok, "expected Idle on rejection, got %#v", res)
	assert.Len(t, sink.rejections, 1)
}

func TestMachine_Stop_NoNewSignals(t *testing.T) {
	calls := 0
	getSignal := func(_ context.Context, _ string) (*Spec, error) {
		calls++
		return &Spec{Position: Long, PriceTakeProfit: 51000, PriceStopLoss: 49000, MinuteEstimatedTime: 60}, nil
	}
	m := newTestMachine(getSignal, newSeriesAdapter(4, []float64{50000}), nil)
	m.Stop()

	res := m.Tick(context.Background(), 0, ModeBacktest)
	_, ok := res.(Idle)
	assert.True(t, ok)
	assert.Zero(t, calls)
}

func TestMachine_Throttle_SkipsGenerationWithinInterval(t *testing.T) {
	calls := 0
	getSignal := func(_ context.Context, _ string) (*Spec, error) {
		calls++
		return nil, nil
	}
	m := newTestMachine(getSignal, newSeriesAdapter(4, []float64{50000, 50000, 50000}), nil)
	m.intervalMs = 120_000

	m.Tick(context.Background(), 0, ModeBacktest)
	m.Tick(context.Background(), 60_000, ModeBacktest)
	assert.Equal(t, 1, calls, "second tick within the interval should not re-invoke the strategy")
}
