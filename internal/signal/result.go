package signal

// Result is the discriminated tick/batch outcome (§3 "Tick result"). Each
// concrete type carries exactly its own fields — no variant shares a
// struct with optional fields standing in for another variant.
type Result interface {
	resultKind() string
}

// Idle means no signal exists or was generated this tick/candle.
type Idle struct {
	Symbol       string
	CurrentPrice float64
	StrategyName string
	ExchangeName string
}

func (Idle) resultKind() string { return "idle" }

// Scheduled means a signal is waiting for price to reach PriceOpen.
type Scheduled struct {
	Signal       Row
	CurrentPrice float64
}

func (Scheduled) resultKind() string { return "scheduled" }

// Opened means a signal just activated (scheduled -> pending) or was
// created as an immediate market entry.
type Opened struct {
	Signal       Row
	CurrentPrice float64 // == Signal.PriceOpen
}

func (Opened) resultKind() string { return "opened" }

// Active means a scheduled or pending signal is still being monitored with no
// transition this tick/candle.
type Active struct {
	Signal       Row
	CurrentPrice float64
}

func (Active) resultKind() string { return "active" }

// Cancelled means a scheduled signal was withdrawn before ever opening.
type Cancelled struct {
	Signal         Row
	CurrentPrice   float64
	CloseTimestamp int64
	Reason         CancelReason
}

func (Cancelled) resultKind() string { return "cancelled" }

// Closed means a pending signal reached a terminal close.
type Closed struct {
	Signal         Row
	CurrentPrice   float64
	CloseTimestamp int64
	CloseReason    CloseReason
	PnL            PnL
}

func (Closed) resultKind() string { return "closed" }

// KindOf returns the discriminator string for a Result, for logging/event
// routing without a type switch at every call site.
func KindOf(r Result) string { return r.resultKind() }
