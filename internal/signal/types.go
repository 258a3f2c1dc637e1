// Package signal implements the signal lifecycle engine: specification and
// row types, the validator, the PnL calculator, and the state machine that
// drives a signal from generation through its terminal close or
// cancellation.
package signal

// Position is the direction of a signal.
type Position string

const (
	Long  Position = "long"
	Short Position = "short"
)

// Kind discriminates a stamped SignalRow: waiting to activate, or already
// an active monitored position.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindPending   Kind = "pending"
)

// CloseReason is the terminal reason a pending signal closed.
type CloseReason string

const (
	CloseTakeProfit  CloseReason = "take_profit"
	CloseStopLoss    CloseReason = "stop_loss"
	CloseTimeExpired CloseReason = "time_expired"
)

// CancelReason is the terminal reason a scheduled signal never opened.
type CancelReason string

const (
	CancelTimeout            CancelReason = "timeout"
	CancelStopLossBeforeOpen CancelReason = "stop_loss_before_activation"
	CancelNotActivated       CancelReason = "not_activated"
)

// Spec is what a strategy's getSignal returns, or nil for no signal this
// tick.
type Spec struct {
	Position            Position
	PriceOpen           *float64 // nil => market entry at current VWAP
	PriceTakeProfit     float64
	PriceStopLoss       float64
	MinuteEstimatedTime int
	Note                string
}

// Row is a Spec stamped with engine-assigned identity, after priceOpen
// substitution (if it was a market entry) and kind classification.
type Row struct {
	ID                  string
	Symbol              string
	StrategyName        string
	ExchangeName        string
	Timestamp           int64 // creation time, ms epoch
	Position            Position
	PriceOpen           float64 // always concrete after stamping
	PriceTakeProfit     float64
	PriceStopLoss       float64
	MinuteEstimatedTime int
	Note                string
	Kind                Kind
}

// PnL is the result of the PnL calculator (C6) for a closed signal.
type PnL struct {
	PriceOpen           float64
	PriceClose          float64
	PriceOpenWithCosts  float64
	PriceCloseWithCosts float64
	PnLPercentage       float64
}

// Mode labels whether a Tick comes from the backtest or the live driver;
// the machine's comparisons are the same in both modes.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)
