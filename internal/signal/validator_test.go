package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRow(pos Position) Row {
	if pos == Short {
		return Row{
			Position:            Short,
			PriceOpen:           50000,
			PriceTakeProfit:     49000,
			PriceStopLoss:       51000,
			MinuteEstimatedTime: 60,
			Timestamp:           1,
		}
	}
	return Row{
		Position:            Long,
		PriceOpen:           50000,
		PriceTakeProfit:     51000,
		PriceStopLoss:       49000,
		MinuteEstimatedTime: 60,
		Timestamp:           1,
	}
}

func TestValidate_ValidLong(t *testing.T) {
	require.NoError(t, Validate(validRow(Long), Thresholds{}))
}

func TestValidate_ValidShort(t *testing.T) {
	require.NoError(t, Validate(validRow(Short), Thresholds{}))
}

func TestValidate_LongWrongOrder(t *testing.T) {
	row := validRow(Long)
	row.PriceTakeProfit, row.PriceStopLoss = row.PriceStopLoss, row.PriceTakeProfit
	err := Validate(row, Thresholds{})
	require.Error(t, err)
	var invalid *ErrInvalid
	assert.ErrorAs(t, err, &invalid)
}

func TestValidate_NonPositiveMinuteEstimatedTime(t *testing.T) {
	row := validRow(Long)
	row.MinuteEstimatedTime = 0
	err := Validate(row, Thresholds{})
	require.Error(t, err)
}

func TestValidate_TakeProfitDistanceBelowMinimum(t *testing.T) {
	row := validRow(Long)
	row.PriceTakeProfit = 50010 // 0.02% distance
	err := Validate(row, Thresholds{MinTakeProfitDistancePercent: 0.5})
	require.Error(t, err)
}

func TestValidate_StopLossDistanceWithinBounds(t *testing.T) {
	row := validRow(Long)
	err := Validate(row, Thresholds{MinStopLossDistancePercent: 0.5, MaxStopLossDistancePercent: 5})
	require.NoError(t, err)
}

func TestValidate_LifetimeExceedsMaximum(t *testing.T) {
	row := validRow(Long)
	row.MinuteEstimatedTime = 1000
	err := Validate(row, Thresholds{MaxSignalLifetimeMinutes: 500})
	require.Error(t, err)
}
