package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegaltier/backtest-kit/internal/signal"
)

func testRow() signal.Row {
	return signal.Row{
		ID:                  "row-1",
		Symbol:              "BTCUSDT",
		StrategyName:        "meanrev",
		ExchangeName:        "binance",
		Timestamp:           1_700_000_000_000,
		Position:            signal.Long,
		PriceOpen:           50000,
		PriceTakeProfit:     51000,
		PriceStopLoss:       49000,
		MinuteEstimatedTime: 60,
		Kind:                signal.KindPending,
	}
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	row := testRow()
	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", row))

	loaded, ok, err := store.Load("binance", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, row, loaded)
}

func TestStore_LoadMissingReturnsNotOK(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Load("binance", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LoadWithMismatchedIdentityDiscards(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	row := testRow()
	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", row))

	_, ok, err := store.Load("okx", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveOverwritesPriorState(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	row := testRow()
	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", row))

	row2 := row
	row2.ID = "row-2"
	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", row2))

	loaded, ok, err := store.Load("binance", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-2", loaded.ID)
}

func TestStore_ClearRemovesState(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	row := testRow()
	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", row))
	require.NoError(t, store.Clear("meanrev", "BTCUSDT"))

	_, ok, err := store.Load("binance", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ClearMissingIsNoop(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Clear("meanrev", "BTCUSDT"))
}

func TestStore_KeysAreIndependent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	btc := testRow()
	eth := testRow()
	eth.Symbol = "ETHUSDT"

	require.NoError(t, store.Save("binance", "meanrev", "BTCUSDT", btc))
	require.NoError(t, store.Save("binance", "meanrev", "ETHUSDT", eth))

	loadedBTC, ok, err := store.Load("binance", "meanrev", "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", loadedBTC.Symbol)

	loadedETH, ok, err := store.Load("binance", "meanrev", "ETHUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", loadedETH.Symbol)
}
