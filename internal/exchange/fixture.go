package exchange

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pegaltier/backtest-kit/internal/candle"
)

// FixtureAdapter is an in-memory candle.Adapter backed by pre-loaded
// candles, used by backtest drivers and tests in place of a live exchange.
type FixtureAdapter struct {
	candles map[string][]candle.Candle
}

// NewFixtureAdapter builds an empty FixtureAdapter; load data with LoadCandles.
func NewFixtureAdapter() *FixtureAdapter {
	return &FixtureAdapter{candles: make(map[string][]candle.Candle)}
}

func fixtureKey(symbol string, iv candle.Interval) string {
	return symbol + "|" + string(iv)
}

// LoadCandles installs (or replaces) the candle series for symbol/iv,
// sorted ascending by OpenTime.
func (f *FixtureAdapter) LoadCandles(symbol string, iv candle.Interval, candles []candle.Candle) {
	sorted := append([]candle.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime < sorted[j].OpenTime })
	f.candles[fixtureKey(symbol, iv)] = sorted
}

// GetCandles returns the count candles whose OpenTime is <= endTime, most
// recent last — the last candle's OpenTime equals endTime whenever the
// series is on the same interval grid, matching candle.Source's alignment
// contract. Returns an error if fewer than count are available, mirroring
// a real exchange's short-history behavior.
func (f *FixtureAdapter) GetCandles(ctx context.Context, symbol string, iv candle.Interval, endTime int64, count int) ([]candle.Candle, error) {
	series := f.candles[fixtureKey(symbol, iv)]
	if len(series) == 0 {
		return nil, fmt.Errorf("exchange: no fixture candles loaded for %s %s", symbol, iv)
	}

	idx := sort.Search(len(series), func(i int) bool { return series[i].OpenTime > endTime })
	if idx < count {
		return nil, fmt.Errorf("exchange: requested %d candles ending %d, only %d available", count, endTime, idx)
	}

	out := make([]candle.Candle, count)
	copy(out, series[idx-count:idx])
	return out, nil
}

// FormatPrice rounds to 2 decimal places, as a stand-in for exchange tick size.
func (f *FixtureAdapter) FormatPrice(symbol string, price float64) (string, error) {
	return decimal.NewFromFloat(price).Round(2).String(), nil
}

// FormatQuantity rounds to 6 decimal places, as a stand-in for exchange lot size.
func (f *FixtureAdapter) FormatQuantity(symbol string, quantity float64) (string, error) {
	return decimal.NewFromFloat(quantity).Round(6).String(), nil
}
