package signal

// Default cost constants, in percent (C6). Configurable via Config but
// these are the values every literal scenario in the spec is keyed to.
const (
	DefaultSlippagePercent = 0.1
	DefaultFeePercent      = 0.1
)

// Costs holds the per-side slippage and fee, in percent, applied to both
// the open and close fill.
type Costs struct {
	SlippagePercent float64
	FeePercent      float64
}

// DefaultCosts returns the spec's default 0.1%/0.1% slippage+fee.
func DefaultCosts() Costs {
	return Costs{SlippagePercent: DefaultSlippagePercent, FeePercent: DefaultFeePercent}
}

// Compute applies slippage and fee to the open/close fills and derives the
// signed percentage return, per direction (§4.6). Pure and total.
func Compute(position Position, priceOpen, priceClose float64, costs Costs) PnL {
	s := costs.SlippagePercent / 100
	f := costs.FeePercent / 100

	var openAdj, closeAdj, pnlPct float64
	switch position {
	case Short:
		openAdj = priceOpen * (1 - s + f)
		closeAdj = priceClose * (1 + s + f)
		pnlPct = (openAdj - closeAdj) / openAdj * 100
	default: // Long
		openAdj = priceOpen * (1 + s + f)
		closeAdj = priceClose * (1 - s - f)
		pnlPct = (closeAdj - openAdj) / openAdj * 100
	}

	return PnL{
		PriceOpen:           priceOpen,
		PriceClose:          priceClose,
		PriceOpenWithCosts:  openAdj,
		PriceCloseWithCosts: closeAdj,
		PnLPercentage:       pnlPct,
	}
}
