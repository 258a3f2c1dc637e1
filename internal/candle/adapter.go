package candle

import "context"

// Adapter is the external exchange boundary (§6): everything the engine
// needs from an exchange to drive the candle source. Implementations
// (fixture, Binance) may return plain errors; Source wraps every adapter
// failure in ErrAdapter so the tick loop can classify them without
// inspecting exchange-specific types.
type Adapter interface {
	// GetCandles returns up to count candles at interval iv for symbol,
	// ending at or before endTime (inclusive), ordered oldest-first.
	GetCandles(ctx context.Context, symbol string, iv Interval, endTime int64, count int) ([]Candle, error)

	// FormatPrice renders a price at the exchange's tick-size precision.
	FormatPrice(symbol string, price float64) (string, error)

	// FormatQuantity renders a quantity at the exchange's lot-size precision.
	FormatQuantity(symbol string, quantity float64) (string, error)
}

// ErrAdapter wraps any error surfaced by an Adapter call so the caller can
// classify it as the §7 "AdapterError" kind without caring which exchange
// implementation raised it.
type ErrAdapter struct {
	Op  string
	Err error
}

func (e *ErrAdapter) Error() string {
	return "adapter error (" + e.Op + "): " + e.Err.Error()
}

func (e *ErrAdapter) Unwrap() error { return e.Err }
