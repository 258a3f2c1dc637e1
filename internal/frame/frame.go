// Package frame defines the backtest driver's iteration window: a named
// historical date range plus a base interval (§6 "Frame schema").
package frame

import (
	"time"

	"github.com/pegaltier/backtest-kit/internal/candle"
)

// Frame is a date range, inclusive of both StartDate and EndDate, plus a
// base iteration interval used by the backtest driver.
type Frame struct {
	FrameName string
	Interval  candle.Interval
	StartDate time.Time
	EndDate   time.Time
}

// Timeframe enumerates the frame's interval-aligned timestamps, delegating
// to candle.Enumerate (C1).
func (f Frame) Timeframe() ([]int64, error) {
	return candle.Enumerate(f.StartDate, f.EndDate, f.Interval)
}
