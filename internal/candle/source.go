package candle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrCount is raised when an adapter returns fewer candles than requested,
// which the engine cannot average over (§7 "CountError").
type ErrCount struct {
	Requested int
	Received  int
}

func (e *ErrCount) Error() string {
	return fmt.Sprintf("expected %d candles, received %d", e.Requested, e.Received)
}

// ErrAlignment is raised when a timestamp cannot be aligned to an interval
// boundary (§7 "AlignmentError") — from an unsupported interval tag, or
// when the adapter's last candle does not open at the aligned end time;
// surfaced here rather than as the bare interval error so callers see one
// error family for every candle.Source method.
type ErrAlignment struct {
	Err error
}

func (e *ErrAlignment) Error() string { return "alignment error: " + e.Err.Error() }
func (e *ErrAlignment) Unwrap() error { return e.Err }

// Source is the candle-retrieval facade C2 describes: adapter calls
// wrapped with circuit breaking, optional caching, and VWAP derivation.
type Source struct {
	adapter Adapter
	breaker *ExchangeBreaker
	cache   *RedisCache
	log     zerolog.Logger
}

// NewSource builds a Source. breaker and cache may be nil/passthrough.
func NewSource(name string, adapter Adapter, breaker *ExchangeBreaker, cache *RedisCache) *Source {
	if breaker == nil {
		breaker = NewPassthroughBreaker(name)
	}
	return &Source{
		adapter: adapter,
		breaker: breaker,
		cache:   cache,
		log:     log.With().Str("component", "candle.Source").Str("exchange", name).Logger(),
	}
}

// GetCandles fetches exactly count candles ending at endTime, aligned to iv.
// Fewer than count is an ErrCount; a last candle that does not open at the
// aligned end time is an ErrAlignment.
func (s *Source) GetCandles(ctx context.Context, symbol string, iv Interval, endTime int64, count int) ([]Candle, error) {
	aligned, err := AlignDown(endTime, iv)
	if err != nil {
		return nil, &ErrAlignment{Err: err}
	}

	candles, err := Execute(s.breaker, "get_candles", func() ([]Candle, error) {
		return s.adapter.GetCandles(ctx, symbol, iv, aligned, count)
	})
	if err != nil {
		return nil, &ErrAdapter{Op: "get_candles", Err: err}
	}
	if len(candles) < count {
		return nil, &ErrCount{Requested: count, Received: len(candles)}
	}
	if last := candles[len(candles)-1].OpenTime; last != aligned {
		return nil, &ErrAlignment{Err: fmt.Errorf("expected last candle open_time %d, got %d", aligned, last)}
	}
	return candles, nil
}

// GetNextCandles fetches the count candles immediately following
// startTime (exclusive), used by the backtest driver's batch path.
func (s *Source) GetNextCandles(ctx context.Context, symbol string, iv Interval, startTime int64, count int) ([]Candle, error) {
	ms, err := iv.Millis()
	if err != nil {
		return nil, &ErrAlignment{Err: err}
	}
	endTime := startTime + ms*int64(count)

	candles, err := Execute(s.breaker, "get_next_candles", func() ([]Candle, error) {
		return s.adapter.GetCandles(ctx, symbol, iv, endTime, count)
	})
	if err != nil {
		return nil, &ErrAdapter{Op: "get_next_candles", Err: err}
	}
	if len(candles) > 0 {
		if last := candles[len(candles)-1].OpenTime; last != endTime {
			return nil, &ErrAlignment{Err: fmt.Errorf("expected last candle open_time %d, got %d", endTime, last)}
		}
	}
	return candles, nil
}

// GetAveragePrice returns the VWAP (falling back to arithmetic mean close)
// over the most recent `count` candles at interval iv ending at endTime.
func (s *Source) GetAveragePrice(ctx context.Context, symbol string, iv Interval, endTime int64, count int) (float64, error) {
	aligned, err := AlignDown(endTime, iv)
	if err != nil {
		return 0, &ErrAlignment{Err: err}
	}

	if price, ok := s.cache.Get(ctx, symbol, iv, aligned); ok {
		return price, nil
	}

	candles, err := s.GetCandles(ctx, symbol, iv, aligned, count)
	if err != nil {
		return 0, err
	}

	price, ok := AveragePrice(candles)
	if !ok {
		return 0, &ErrCount{Requested: count, Received: len(candles)}
	}

	if err := s.cache.Set(ctx, symbol, iv, aligned, price); err != nil {
		s.log.Debug().Err(err).Msg("average price cache write failed, continuing uncached")
	}
	return price, nil
}

// FormatPrice delegates to the adapter, wrapped as an AdapterError.
func (s *Source) FormatPrice(symbol string, price float64) (string, error) {
	out, err := s.adapter.FormatPrice(symbol, price)
	if err != nil {
		return "", &ErrAdapter{Op: "format_price", Err: err}
	}
	return out, nil
}

// FormatQuantity delegates to the adapter, wrapped as an AdapterError.
func (s *Source) FormatQuantity(symbol string, quantity float64) (string, error) {
	out, err := s.adapter.FormatQuantity(symbol, quantity)
	if err != nil {
		return "", &ErrAdapter{Op: "format_quantity", Err: err}
	}
	return out, nil
}
