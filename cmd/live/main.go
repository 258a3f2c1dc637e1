// Live Runner CLI
// Drives one signal.Machine per configured (strategy, symbol) pair against
// wall-clock time, restoring any persisted pending/scheduled signal on
// startup and exposing a Prometheus /metrics endpoint for the fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/config"
	"github.com/pegaltier/backtest-kit/internal/events"
	"github.com/pegaltier/backtest-kit/internal/exchange"
	"github.com/pegaltier/backtest-kit/internal/live"
	"github.com/pegaltier/backtest-kit/internal/metrics"
	"github.com/pegaltier/backtest-kit/internal/persistence"
	"github.com/pegaltier/backtest-kit/internal/risk"
	signalpkg "github.com/pegaltier/backtest-kit/internal/signal"
	"github.com/pegaltier/backtest-kit/internal/strategy"
)

var (
	strategyName = flag.String("strategy", "", "Strategy name")
	exchangeName = flag.String("exchange", "binance", "Exchange name (must have a matching [exchanges.<name>] config section)")
	symbols      = flag.String("symbols", "BTCUSDT", "Comma-separated list of symbols to run")
	interval     = flag.String("interval", "1h", "Tick interval")
	configPath   = flag.String("config", "", "Path to config file (optional)")
)

func main() {
	flag.Parse()

	if *strategyName == "" {
		fmt.Fprintln(os.Stderr, "Error: -strategy is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	exCfg, ok := cfg.Exchanges[*exchangeName]
	if !ok {
		log.Fatal().Str("exchange", *exchangeName).Msg("no configuration for exchange")
	}

	adapter := exchange.NewBinanceAdapter(exCfg.APIKey, exCfg.SecretKey, exCfg.RequestsPerSecond)
	breaker := candle.NewExchangeBreaker(*exchangeName, candle.DefaultBreakerSettings())
	source := candle.NewSource(*exchangeName, adapter, breaker, nil)

	iv := candle.Interval(*interval)
	ivMs, err := iv.Millis()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -interval")
	}

	bus := events.New()
	defer bus.Close()
	bus.Subscribe(events.StreamError, func(e events.Event) {
		log.Error().Interface("error", e.Payload).Msg("engine error")
	})

	var bridge *events.NatsBridge
	if cfg.NATS.Enabled {
		bridge, err = events.NewNatsBridge(cfg.NATS.URL, cfg.NATS.Prefix)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		bridge.Attach(bus, events.StreamSignalLive, events.StreamError)
		defer bridge.Close()
	}

	var store *persistence.Store
	if cfg.Persist.Enabled {
		store, err = persistence.NewStore(cfg.Persist.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open persistence store")
		}
		store = store.WithLogger(config.NewLogger("persistence"))
	}

	gate := risk.NewGate()
	machineCfg := signalpkg.Config{
		Costs:                signalpkg.Costs{SlippagePercent: cfg.Engine.PercentSlippage, FeePercent: cfg.Engine.PercentFee},
		ScheduleAwaitMinutes: cfg.Engine.ScheduleAwaitMinutes,
		AvgPriceCandlesCount: cfg.Engine.AvgPriceCandlesCount,
		Thresholds: signalpkg.Thresholds{
			MinTakeProfitDistancePercent: cfg.Engine.MinTakeProfitDistancePercent,
			MinStopLossDistancePercent:   cfg.Engine.MinStopLossDistancePercent,
			MaxStopLossDistancePercent:   cfg.Engine.MaxStopLossDistancePercent,
			MaxSignalLifetimeMinutes:     cfg.Engine.MaxSignalLifetimeMinutes,
		},
	}

	catalog := strategy.NewCatalog()
	if err := catalog.RegisterStrategy(*strategyName, exampleStrategy(*strategyName)); err != nil {
		log.Fatal().Err(err).Msg("failed to register strategy")
	}
	strategyFn, err := catalog.Strategy(*strategyName)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy not found in catalog")
	}

	fleet := live.NewFleet()
	for _, symbol := range splitSymbols(*symbols) {
		machine := signalpkg.New(*strategyName, symbol, *exchangeName, *strategyName, ivMs, source, gate, strategyFn, nil, machineCfg)
		runner := live.NewRunner(*exchangeName, *strategyName, symbol, ivMs, machine, store, bus)
		fleet.Add(*strategyName, symbol, runner)
	}

	if cfg.Monitor.EnableMetrics {
		srv := metrics.NewServer(cfg.Monitor.PrometheusPort, config.NewLogger("metrics_server"))
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("strategy", *strategyName).
		Str("exchange", *exchangeName).
		Str("symbols", *symbols).
		Msg("starting live signal fleet")

	if err := fleet.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fleet exited with error")
	}
	log.Info().Msg("live signal fleet stopped")
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

// exampleStrategy is a placeholder strategy function used when no strategy
// plugin is wired in: it never generates a signal. Real deployments supply
// their own signalpkg.StrategyFunc, registered in the Catalog under this name.
func exampleStrategy(name string) signalpkg.StrategyFunc {
	return func(ctx context.Context, sym string) (*signalpkg.Spec, error) {
		return nil, nil
	}
}
