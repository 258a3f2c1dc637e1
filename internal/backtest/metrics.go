package backtest

import (
	"math"

	"github.com/pegaltier/backtest-kit/internal/signal"
)

// Summary aggregates a run's closed/cancelled signals into the headline
// performance statistics a backtest report needs.
type Summary struct {
	TotalClosed           int
	TotalCancelled        int
	WinningTrades         int
	LosingTrades          int
	WinRate               float64 // percentage of closed trades with PnL% > 0
	TotalPnLPercentage    float64 // sum of every closed trade's PnL%
	AveragePnLPercentage  float64
	LargestWin            float64
	LargestLoss           float64
	MaxDrawdownPercentage float64 // peak-to-trough drop in cumulative PnL%
}

// Summarize walks results in chronological order and computes Summary.
// Cumulative PnL% (not account equity) is the drawdown basis, since the
// engine has no notion of position sizing or account capital.
func Summarize(results []signal.Result) Summary {
	var s Summary
	var cumulative, peak float64

	for _, res := range results {
		switch v := res.(type) {
		case signal.Closed:
			s.TotalClosed++
			pnl := v.PnL.PnLPercentage
			s.TotalPnLPercentage += pnl
			if pnl > 0 {
				s.WinningTrades++
			} else if pnl < 0 {
				s.LosingTrades++
			}
			if pnl > s.LargestWin {
				s.LargestWin = pnl
			}
			if pnl < s.LargestLoss {
				s.LargestLoss = pnl
			}

			cumulative += pnl
			if cumulative > peak {
				peak = cumulative
			}
			if drawdown := peak - cumulative; drawdown > s.MaxDrawdownPercentage {
				s.MaxDrawdownPercentage = drawdown
			}
		case signal.Cancelled:
			s.TotalCancelled++
		}
	}

	if s.TotalClosed > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalClosed) * 100
		s.AveragePnLPercentage = s.TotalPnLPercentage / float64(s.TotalClosed)
	}
	return s
}

// SharpeRatio computes the mean-over-stddev of a per-trade PnL% series,
// annualization left to the caller since trade cadence varies by strategy.
func SharpeRatio(pnlPercentages []float64) float64 {
	n := len(pnlPercentages)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, p := range pnlPercentages {
		mean += p
	}
	mean /= float64(n)

	if n == 1 {
		return 0
	}
	var variance float64
	for _, p := range pnlPercentages {
		d := p - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}
