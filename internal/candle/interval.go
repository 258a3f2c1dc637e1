// Package candle provides historical OHLCV retrieval, interval alignment,
// and volume-weighted price derivation for the signal lifecycle engine.
package candle

import (
	"fmt"
	"time"
)

// Interval is one of the fixed base intervals the engine understands.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
)

// minutesByInterval maps each supported interval to its duration in minutes.
var minutesByInterval = map[Interval]int64{
	Interval1m:  1,
	Interval3m:  3,
	Interval5m:  5,
	Interval15m: 15,
	Interval30m: 30,
	Interval1h:  60,
	Interval2h:  120,
	Interval4h:  240,
	Interval6h:  360,
	Interval8h:  480,
	Interval12h: 720,
	Interval1d:  1440,
	Interval3d:  4320,
}

// ErrUnsupportedInterval is returned when a tag falls outside the closed set.
type ErrUnsupportedInterval struct {
	Interval Interval
}

func (e *ErrUnsupportedInterval) Error() string {
	return fmt.Sprintf("unsupported interval: %q", e.Interval)
}

// Millis returns the interval's duration in milliseconds.
func (iv Interval) Millis() (int64, error) {
	m, ok := minutesByInterval[iv]
	if !ok {
		return 0, &ErrUnsupportedInterval{Interval: iv}
	}
	return m * 60_000, nil
}

// AlignDown floors a millisecond epoch timestamp to the most recent interval
// boundary: floor(ts / interval_ms) * interval_ms.
func AlignDown(tsMillis int64, iv Interval) (int64, error) {
	ms, err := iv.Millis()
	if err != nil {
		return 0, err
	}
	if tsMillis < 0 {
		// floor division toward negative infinity for completeness; the
		// engine never sees negative epochs in practice (§3 invariant 3).
		return ((tsMillis - ms + 1) / ms) * ms, nil
	}
	return (tsMillis / ms) * ms, nil
}

// Enumerate returns the finite, restartable sequence of interval-aligned
// timestamps spanning [start, end], inclusive of both boundaries once
// aligned down.
func Enumerate(start, end time.Time, iv Interval) ([]int64, error) {
	ms, err := iv.Millis()
	if err != nil {
		return nil, err
	}
	startMs, err := AlignDown(start.UnixMilli(), iv)
	if err != nil {
		return nil, err
	}
	endMs, err := AlignDown(end.UnixMilli(), iv)
	if err != nil {
		return nil, err
	}
	if endMs < startMs {
		return []int64{}, nil
	}
	out := make([]int64, 0, (endMs-startMs)/ms+1)
	for t := startMs; t <= endMs; t += ms {
		out = append(out, t)
	}
	return out, nil
}
