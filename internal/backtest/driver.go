// Package backtest implements C7: the deterministic backtest driver that
// walks a frame's timeframe, driving one signal.Machine per symbol through
// Tick, and fast-forwarding through an open signal's lifetime with
// Machine.Batch instead of replaying it one candle at a time.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/events"
	"github.com/pegaltier/backtest-kit/internal/frame"
	"github.com/pegaltier/backtest-kit/internal/signal"
)

// Driver replays one symbol's frame against one signal.Machine.
type Driver struct {
	symbol     string
	intervalMs int64
	source     *candle.Source
	machine    Machine
	bus        *events.Bus
	log        zerolog.Logger
}

// Machine is the subset of signal.Machine's API the driver depends on —
// named separately so tests can drive it with a fake.
type Machine interface {
	Tick(ctx context.Context, now int64, mode signal.Mode) signal.Result
	Batch(candles []candle.Candle) signal.Result
}

// NewDriver builds a Driver for one symbol. source is used only to fetch
// the candle windows Batch needs after a signal opens; the machine owns
// its own source for price lookups during Tick.
func NewDriver(symbol string, intervalMs int64, source *candle.Source, machine Machine, bus *events.Bus) *Driver {
	return &Driver{
		symbol:     symbol,
		intervalMs: intervalMs,
		source:     source,
		machine:    machine,
		bus:        bus,
		log:        log.With().Str("component", "backtest.Driver").Str("symbol", symbol).Logger(),
	}
}

// Run replays every interval-aligned timestamp in f against the machine.
// On an Opened result, it fetches the candles covering the signal's
// estimated lifetime and collapses the rest of that lifetime into a single
// Batch call, then resumes Tick-by-tick monitoring from the close
// timestamp onward. Returns every terminal Closed/Cancelled result in
// chronological order.
func (d *Driver) Run(ctx context.Context, f frame.Frame) ([]signal.Result, error) {
	timestamps, err := f.Timeframe()
	if err != nil {
		return nil, fmt.Errorf("backtest: enumerate frame: %w", err)
	}

	var terminal []signal.Result
	i := 0
	for i < len(timestamps) {
		now := timestamps[i]
		res := d.machine.Tick(ctx, now, signal.ModeBacktest)
		d.publish(res)

		opened, ok := res.(signal.Opened)
		if !ok {
			i++
			continue
		}

		closeTs, closeRes, err := d.runBatch(ctx, now, opened)
		if err != nil {
			return terminal, err
		}
		terminal = append(terminal, closeRes)
		d.publish(closeRes)

		i = advancePast(timestamps, i, closeTs)
	}

	d.bus.Publish(events.StreamDone, Done{Symbol: d.symbol, TotalClosed: len(terminal)})
	return terminal, nil
}

// runBatch fetches one 1-minute candle per minute of the signal's
// estimated lifetime, plus one of slack, and hands them to Machine.Batch
// in one call. now is the tick timestamp that produced
// opened — for a scheduled signal activated on this tick, opened.Signal.Timestamp
// still carries the original schedule time, so the fetch must start from
// now, not from the signal's (possibly long-stale) creation timestamp.
func (d *Driver) runBatch(ctx context.Context, now int64, opened signal.Opened) (int64, signal.Result, error) {
	lifetimeMinutes := opened.Signal.MinuteEstimatedTime
	if lifetimeMinutes <= 0 {
		lifetimeMinutes = 1
	}
	// +1 candle of slack so the final VWAP window always has data.
	count := lifetimeMinutes + 1

	candles, err := d.source.GetNextCandles(ctx, d.symbol, candle.Interval1m, now, count)
	if err != nil {
		return 0, nil, fmt.Errorf("backtest: fetch batch window for %s: %w", d.symbol, err)
	}
	if len(candles) == 0 {
		return 0, nil, fmt.Errorf("backtest: no candles available to resolve open signal on %s", d.symbol)
	}

	res := d.machine.Batch(candles)
	switch v := res.(type) {
	case signal.Closed:
		return v.CloseTimestamp, v, nil
	case signal.Cancelled:
		return v.CloseTimestamp, v, nil
	default:
		return 0, nil, fmt.Errorf("backtest: batch on %s returned unexpected result %T", d.symbol, res)
	}
}

// advancePast returns the index of the first timestamp strictly greater
// than closeTs, so the tick loop resumes after the batch-resolved window
// instead of re-processing minutes Batch already consumed.
func advancePast(timestamps []int64, from int, closeTs int64) int {
	i := from + 1
	for i < len(timestamps) && timestamps[i] <= closeTs {
		i++
	}
	return i
}

func (d *Driver) publish(res signal.Result) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.StreamSignalBacktest, res)
}

// Done is published on the done stream when a symbol's frame finishes.
type Done struct {
	Symbol      string
	TotalClosed int
}
