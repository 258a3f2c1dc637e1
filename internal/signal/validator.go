package signal

import (
	"fmt"
	"math"
)

// ErrInvalid is the §7 "InvalidSignal" kind: one or more contract
// conditions from §3 (or the configured distance/lifetime thresholds)
// failed. The signal is dropped, never entering the state machine.
type ErrInvalid struct {
	Reasons []string
}

func (e *ErrInvalid) Error() string {
	return fmt.Sprintf("invalid signal: %v", e.Reasons)
}

// Thresholds are the configured §6 validator floors/ceilings. A zero value
// for any field disables that particular check.
type Thresholds struct {
	MinTakeProfitDistancePercent float64
	MinStopLossDistancePercent   float64
	MaxStopLossDistancePercent   float64
	MaxSignalLifetimeMinutes     int
}

// Validate checks a stamped Row against the §3 contract and, if provided,
// the configured distance/lifetime thresholds. Pure, total.
func Validate(row Row, thresholds Thresholds) error {
	var reasons []string

	for name, v := range map[string]float64{
		"priceOpen":       row.PriceOpen,
		"priceTakeProfit": row.PriceTakeProfit,
		"priceStopLoss":   row.PriceStopLoss,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			reasons = append(reasons, name+" is not finite")
		}
	}

	if row.PriceOpen <= 0 {
		reasons = append(reasons, "priceOpen must be positive")
	}
	if row.MinuteEstimatedTime <= 0 {
		reasons = append(reasons, "minuteEstimatedTime must be positive")
	}
	if row.Timestamp <= 0 {
		reasons = append(reasons, "timestamp must be positive")
	}

	switch row.Position {
	case Long:
		if !(row.PriceTakeProfit > row.PriceOpen && row.PriceOpen > row.PriceStopLoss && row.PriceStopLoss > 0) {
			reasons = append(reasons, "long signal requires priceTakeProfit > priceOpen > priceStopLoss > 0")
		}
	case Short:
		if !(row.PriceStopLoss > row.PriceOpen && row.PriceOpen > row.PriceTakeProfit && row.PriceTakeProfit > 0) {
			reasons = append(reasons, "short signal requires priceStopLoss > priceOpen > priceTakeProfit > 0")
		}
	default:
		reasons = append(reasons, fmt.Sprintf("unknown position %q", row.Position))
	}

	// Distance checks only make sense once the ordering above
	// held, and only run once priceOpen is known to be positive.
	if len(reasons) == 0 && row.PriceOpen > 0 {
		tpDistance := math.Abs(row.PriceTakeProfit-row.PriceOpen) / row.PriceOpen * 100
		slDistance := math.Abs(row.PriceOpen-row.PriceStopLoss) / row.PriceOpen * 100

		if thresholds.MinTakeProfitDistancePercent > 0 && tpDistance < thresholds.MinTakeProfitDistancePercent {
			reasons = append(reasons, fmt.Sprintf("take-profit distance %.4f%% below configured minimum %.4f%%", tpDistance, thresholds.MinTakeProfitDistancePercent))
		}
		if thresholds.MinStopLossDistancePercent > 0 && slDistance < thresholds.MinStopLossDistancePercent {
			reasons = append(reasons, fmt.Sprintf("stop-loss distance %.4f%% below configured minimum %.4f%%", slDistance, thresholds.MinStopLossDistancePercent))
		}
		if thresholds.MaxStopLossDistancePercent > 0 && slDistance > thresholds.MaxStopLossDistancePercent {
			reasons = append(reasons, fmt.Sprintf("stop-loss distance %.4f%% above configured maximum %.4f%%", slDistance, thresholds.MaxStopLossDistancePercent))
		}
	}

	if thresholds.MaxSignalLifetimeMinutes > 0 && row.MinuteEstimatedTime > thresholds.MaxSignalLifetimeMinutes {
		reasons = append(reasons, fmt.Sprintf("minuteEstimatedTime %d exceeds configured maximum %d", row.MinuteEstimatedTime, thresholds.MaxSignalLifetimeMinutes))
	}

	if len(reasons) > 0 {
		return &ErrInvalid{Reasons: reasons}
	}
	return nil
}
