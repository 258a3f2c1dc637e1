// Package live implements C8: the wall-clock live driver. One goroutine per
// (symbol, interval) ticks its signal.Machine once per interval;
// singleflight guards against a slow adapter call causing two overlapping
// ticks for the same machine, and errgroup supervises the whole fleet so a
// single symbol's fatal error doesn't leak an orphaned goroutine.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/events"
	"github.com/pegaltier/backtest-kit/internal/persistence"
	"github.com/pegaltier/backtest-kit/internal/signal"
)

// Machine is the subset of signal.Machine the live driver depends on.
type Machine interface {
	Tick(ctx context.Context, now int64, mode signal.Mode) signal.Result
	Stop()
	Stopped() bool
	HasOpenSignal() bool
	Restore(row signal.Row)
}

// Runner schedules Tick calls for one (exchangeName, strategyName, symbol)
// once per interval, on a ticker started when Run begins; ticks are not
// aligned to wall-clock interval boundaries.
type Runner struct {
	exchangeName string
	strategyName string
	symbol       string
	intervalMs   int64
	machine      Machine
	store        *persistence.Store
	bus          *events.Bus
	sf           singleflight.Group
	log          zerolog.Logger

	stop chan struct{}
}

// NewRunner builds a Runner. store may be nil to disable persistence
// (backtests never persist; live callers normally supply one).
func NewRunner(exchangeName, strategyName, symbol string, intervalMs int64, machine Machine, store *persistence.Store, bus *events.Bus) *Runner {
	return &Runner{
		exchangeName: exchangeName,
		strategyName: strategyName,
		symbol:       symbol,
		intervalMs:   intervalMs,
		machine:      machine,
		store:        store,
		bus:          bus,
		stop:         make(chan struct{}),
		log: log.With().
			Str("component", "live.Runner").
			Str("strategy", strategyName).
			Str("symbol", symbol).
			Logger(),
	}
}

// Restore seeds the runner's machine from persisted state, if any.
func (r *Runner) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	row, ok, err := r.store.Load(r.exchangeName, r.strategyName, r.symbol)
	if err != nil {
		return fmt.Errorf("live: restore %s/%s: %w", r.strategyName, r.symbol, err)
	}
	if ok {
		r.machine.Restore(row)
		r.log.Info().Str("kind", string(row.Kind)).Msg("restored persisted signal")
	}
	return nil
}

// Run blocks, ticking the machine once per interval until ctx is canceled
// or Stop is called.
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Duration(r.intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case now := <-ticker.C:
			r.runOnce(ctx, now.UnixMilli())
		}
	}
}

// runOnce executes exactly one tick via singleflight, so a tick that is
// still in flight when the next boundary fires is skipped rather than
// stacked — the machine is never entered re-entrantly.
func (r *Runner) runOnce(ctx context.Context, now int64) {
	_, _, _ = r.sf.Do(r.symbol, func() (interface{}, error) {
		res := r.machine.Tick(ctx, now, signal.ModeLive)
		r.bus.Publish(events.StreamSignalLive, res)
		r.persist(res)
		return nil, nil
	})
}

func (r *Runner) persist(res signal.Result) {
	if r.store == nil {
		return
	}

	var row *signal.Row
	switch v := res.(type) {
	case signal.Scheduled:
		row = &v.Signal
	case signal.Opened:
		row = &v.Signal
	case signal.Active:
		row = &v.Signal
	}

	if row != nil {
		if err := r.store.Save(r.exchangeName, r.strategyName, r.symbol, *row); err != nil {
			r.log.Warn().Err(err).Msg("persist open signal failed")
			r.bus.Publish(events.StreamError, err)
		}
		return
	}

	if _, closedOrCancelled := res.(signal.Closed); closedOrCancelled || isCancelled(res) {
		if err := r.store.Clear(r.strategyName, r.symbol); err != nil {
			r.log.Warn().Err(err).Msg("clear persisted signal failed")
			r.bus.Publish(events.StreamError, err)
		}
	}
}

func isCancelled(res signal.Result) bool {
	_, ok := res.(signal.Cancelled)
	return ok
}

// Stop requests the runner's scheduling loop to exit; the underlying
// machine's own Stop (no new signals, let the open one finish) is separate
// and must be called explicitly if that's the desired semantics.
func (r *Runner) Stop() {
	close(r.stop)
}

// Fleet supervises a set of Runners concurrently, one goroutine each.
type Fleet struct {
	mu      sync.Mutex
	runners map[string]*Runner
}

// NewFleet builds an empty Fleet.
func NewFleet() *Fleet {
	return &Fleet{runners: make(map[string]*Runner)}
}

func fleetKey(strategyName, symbol string) string {
	return strategyName + "|" + symbol
}

// Add registers a runner under (strategyName, symbol).
func (f *Fleet) Add(strategyName, symbol string, r *Runner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runners[fleetKey(strategyName, symbol)] = r
}

// StopOne stops a single runner by (strategyName, symbol), a no-op if absent.
func (f *Fleet) StopOne(strategyName, symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.runners[fleetKey(strategyName, symbol)]; ok {
		r.Stop()
	}
}

// Run starts every registered runner concurrently and blocks until all
// have exited (on ctx cancellation, an explicit Stop, or the first runner
// error — whichever comes first propagates via the errgroup).
func (f *Fleet) Run(ctx context.Context) error {
	f.mu.Lock()
	runners := make([]*Runner, 0, len(f.runners))
	for _, r := range f.runners {
		runners = append(runners, r)
	}
	f.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error {
			if err := r.Restore(gctx); err != nil {
				return err
			}
			return r.Run(gctx)
		})
	}
	return g.Wait()
}

// StopAll stops every registered runner.
func (f *Fleet) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runners {
		r.Stop()
	}
}
