package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_LongAtEntryLosesTwiceCosts(t *testing.T) {
	costs := DefaultCosts()
	pnl := Compute(Long, 50000, 50000, costs)
	// closing at priceOpen loses 2*(slippage+fee), measured against the
	// cost-adjusted open price: (0.998-1.002)/1.002*100
	c := costs.SlippagePercent + costs.FeePercent
	assert.InDelta(t, -2*c/(1+c/100), pnl.PnLPercentage, 1e-6)
}

func TestCompute_ShortAtEntryLosesTwiceCosts(t *testing.T) {
	costs := DefaultCosts()
	pnl := Compute(Short, 50000, 50000, costs)
	assert.InDelta(t, -2*(costs.SlippagePercent+costs.FeePercent), pnl.PnLPercentage, 1e-6)
}

func TestCompute_LongProfitable(t *testing.T) {
	costs := DefaultCosts()
	pnl := Compute(Long, 50000, 51000, costs)
	assert.Greater(t, pnl.PnLPercentage, 0.0)
}

func TestCompute_ShortProfitableOnDrop(t *testing.T) {
	costs := DefaultCosts()
	pnl := Compute(Short, 50000, 49000, costs)
	assert.Greater(t, pnl.PnLPercentage, 0.0)
}
