// Backtest Runner CLI
// Replays one or more symbols' historical candles through a strategy's
// signal lifecycle, using fixture candle data loaded from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pegaltier/backtest-kit/internal/backtest"
	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/config"
	"github.com/pegaltier/backtest-kit/internal/events"
	"github.com/pegaltier/backtest-kit/internal/exchange"
	"github.com/pegaltier/backtest-kit/internal/frame"
	"github.com/pegaltier/backtest-kit/internal/risk"
	"github.com/pegaltier/backtest-kit/internal/signal"
	"github.com/pegaltier/backtest-kit/internal/strategy"
)

var (
	strategyName = flag.String("strategy", "", "Strategy name (used for logging and risk-gate keys)")
	symbols      = flag.String("symbols", "BTCUSDT", "Comma-separated list of symbols to replay")
	candlesPath  = flag.String("candles", "", "Path to a JSON file of {symbol: []candle.Candle} fixture data")
	startDate    = flag.String("start", "", "Frame start date (YYYY-MM-DD)")
	endDate      = flag.String("end", "", "Frame end date (YYYY-MM-DD)")
	interval     = flag.String("interval", "1h", "Base frame interval")
	configPath   = flag.String("config", "", "Path to config file (optional)")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *strategyName == "" || *candlesPath == "" || *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "Error: -strategy, -candles, -start, and -end are required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -start date")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end date")
	}

	symbolList := splitSymbols(*symbols)
	fixtures, err := loadFixtures(*candlesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load candle fixtures")
	}

	adapter := exchange.NewFixtureAdapter()
	for symbol, candles := range fixtures {
		adapter.LoadCandles(symbol, candle.Interval1m, candles)
	}
	source := candle.NewSource("fixture", adapter, candle.NewPassthroughBreaker("fixture"), nil)

	bus := events.New()
	defer bus.Close()
	bus.Subscribe(events.StreamSignalBacktest, func(e events.Event) {
		log.Info().Interface("result", e.Payload).Msg("signal")
	})

	gate := risk.NewGate()
	machineCfg := signal.Config{
		Costs:                signal.Costs{SlippagePercent: cfg.Engine.PercentSlippage, FeePercent: cfg.Engine.PercentFee},
		ScheduleAwaitMinutes: cfg.Engine.ScheduleAwaitMinutes,
		AvgPriceCandlesCount: cfg.Engine.AvgPriceCandlesCount,
		Thresholds: signal.Thresholds{
			MinTakeProfitDistancePercent: cfg.Engine.MinTakeProfitDistancePercent,
			MinStopLossDistancePercent:   cfg.Engine.MinStopLossDistancePercent,
			MaxStopLossDistancePercent:   cfg.Engine.MaxStopLossDistancePercent,
			MaxSignalLifetimeMinutes:     cfg.Engine.MaxSignalLifetimeMinutes,
		},
	}

	ctx := context.Background()
	iv := candle.Interval(*interval)
	ivMs, err := iv.Millis()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -interval")
	}

	catalog := strategy.NewCatalog()
	if err := catalog.RegisterStrategy(*strategyName, exampleStrategy(*strategyName)); err != nil {
		log.Fatal().Err(err).Msg("failed to register strategy")
	}
	strategyFn, err := catalog.Strategy(*strategyName)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy not found in catalog")
	}

	var allResults []signal.Result
	for _, symbol := range symbolList {
		machine := signal.New(*strategyName, symbol, "fixture", *strategyName, ivMs, source, gate, strategyFn, nil, machineCfg)
		driver := backtest.NewDriver(symbol, ivMs, source, machine, bus)

		f := frame.Frame{FrameName: *strategyName, Interval: iv, StartDate: start, EndDate: end}
		results, err := driver.Run(ctx, f)
		if err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("backtest run failed")
		}
		allResults = append(allResults, results...)
	}

	summary := backtest.Summarize(allResults)
	log.Info().
		Int("closed", summary.TotalClosed).
		Float64("win_rate", summary.WinRate).
		Float64("total_pnl_pct", summary.TotalPnLPercentage).
		Float64("max_drawdown_pct", summary.MaxDrawdownPercentage).
		Msg("backtest complete")
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadFixtures(path string) (map[string][]candle.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures map[string][]candle.Candle
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return fixtures, nil
}

// exampleStrategy is a placeholder strategy function used when no strategy
// plugin is wired in: it never generates a signal. Real deployments supply
// their own signal.StrategyFunc, registered in the Catalog under this name.
func exampleStrategy(name string) signal.StrategyFunc {
	return func(ctx context.Context, sym string) (*signal.Spec, error) {
		return nil, nil
	}
}
