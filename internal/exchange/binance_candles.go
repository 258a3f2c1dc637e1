package exchange

import (
	"context"
	"fmt"
	"strconv"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/pegaltier/backtest-kit/internal/candle"
)

// intervalStrings maps candle.Interval to the Binance kline interval token.
var intervalStrings = map[candle.Interval]string{
	candle.Interval1m:  "1m",
	candle.Interval3m:  "3m",
	candle.Interval5m:  "5m",
	candle.Interval15m: "15m",
	candle.Interval30m: "30m",
	candle.Interval1h:  "1h",
	candle.Interval2h:  "2h",
	candle.Interval4h:  "4h",
	candle.Interval6h:  "6h",
	candle.Interval8h:  "8h",
	candle.Interval12h: "12h",
	candle.Interval1d:  "1d",
	candle.Interval3d:  "3d",
}

// BinanceAdapter implements candle.Adapter against the live Binance REST
// API. Every call is rate-limited client-side so a misbehaving strategy
// loop cannot trip the exchange's own ban thresholds.
type BinanceAdapter struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinanceAdapter builds an adapter from API credentials. requestsPerSecond
// bounds outbound REST calls; Binance's spot weight limits make ~10/s a safe
// default for kline polling.
func NewBinanceAdapter(apiKey, secretKey string, requestsPerSecond float64) *BinanceAdapter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &BinanceAdapter{
		client:  binance.NewClient(apiKey, secretKey),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// GetCandles returns the count most recent candles closing at or before
// endTime (milliseconds since epoch).
func (b *BinanceAdapter) GetCandles(ctx context.Context, symbol string, iv candle.Interval, endTime int64, count int) ([]candle.Candle, error) {
	ivToken, ok := intervalStrings[iv]
	if !ok {
		return nil, &candle.ErrUnsupportedInterval{Interval: iv}
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &candle.ErrAdapter{Op: "GetCandles", Err: err}
	}

	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(ivToken).
		EndTime(endTime).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, &candle.ErrAdapter{Op: "GetCandles", Err: err}
	}

	out := make([]candle.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(symbol, iv, k)
		if err != nil {
			return nil, &candle.ErrAdapter{Op: "GetCandles", Err: err}
		}
		out = append(out, c)
	}
	return out, nil
}

func convertKline(symbol string, iv candle.Interval, k *binance.Kline) (candle.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parse open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parse high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parse low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parse close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parse volume: %w", err)
	}

	return candle.Candle{
		Symbol:    symbol,
		Interval:  iv,
		OpenTime:  k.OpenTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: k.CloseTime,
	}, nil
}

// FormatPrice rounds price to 2 decimal places. No exchange info lookup is
// made, so the symbol's own tick-size filter is not applied; candle
// consumers only need a stable, deterministic rounding for display and PnL
// formatting.
func (b *BinanceAdapter) FormatPrice(symbol string, price float64) (string, error) {
	return decimal.NewFromFloat(price).Round(2).String(), nil
}

// FormatQuantity rounds quantity to 6 decimal places.
func (b *BinanceAdapter) FormatQuantity(symbol string, quantity float64) (string, error) {
	return decimal.NewFromFloat(quantity).Round(6).String(), nil
}
