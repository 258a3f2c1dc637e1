package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pegaltier/backtest-kit/internal/signal"
)

func closedWith(pnlPct float64) signal.Closed {
	return signal.Closed{PnL: signal.PnL{PnLPercentage: pnlPct}}
}

func TestSummarize_ComputesWinRateAndTotals(t *testing.T) {
	results := []signal.Result{
		closedWith(2.0),
		closedWith(-1.0),
		closedWith(3.0),
		signal.Cancelled{},
	}
	s := Summarize(results)

	assert.Equal(t, 3, s.TotalClosed)
	assert.Equal(t, 1, s.TotalCancelled)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 66.666, s.WinRate, 0.01)
	assert.InDelta(t, 4.0, s.TotalPnLPercentage, 0.0001)
}

func TestSummarize_DrawdownTracksPeakToTrough(t *testing.T) {
	results := []signal.Result{
		closedWith(5.0),  // cumulative 5, peak 5
		closedWith(-8.0), // cumulative -3, drawdown 8
		closedWith(1.0),  // cumulative -2
	}
	s := Summarize(results)
	assert.InDelta(t, 8.0, s.MaxDrawdownPercentage, 0.0001)
}

func TestSummarize_EmptyResultsAreZeroValue(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalClosed)
	assert.Zero(t, s.WinRate)
}

func TestSharpeRatio_ZeroVarianceReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio([]float64{1, 1, 1}))
}

func TestSharpeRatio_PositiveMeanPositiveVariance(t *testing.T) {
	r := SharpeRatio([]float64{1, 2, 3, 2, 1})
	assert.Greater(t, r, 0.0)
}
