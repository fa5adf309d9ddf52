package models

import "time"

// Action is the outcome of a strategy decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal names the rule family that produced an intent.
type Signal string

const (
	SignalPercent        Signal = "Percent"
	SignalVolume         Signal = "Volume"
	SignalBollingerUpper Signal = "BollingerUpper"
	SignalBollingerLower Signal = "BollingerLower"
	SignalOrderBook      Signal = "OrderBook"
	SignalStopLoss       Signal = "StopLoss"
)

// Reasons attached to intents for the audit trail.
const (
	ReasonBuy              = "BUY"
	ReasonSell             = "SELL"
	ReasonFirstTrade       = "FIRSTTRADE"
	ReasonVolumeBuy        = "VOLUMEBUY"
	ReasonVolumeSell       = "VOLUMESELL"
	ReasonVolumeBuySellOff = "VOLUMEBUYSELLOFF"
	ReasonVolumeSellBuyOff = "VOLUMESELLBUYOFF"
	ReasonStopLoss         = "STOPLOSS"
	ReasonNone             = "NONE"
)

// TradeIntent is the classification a strategy hands to the orchestrator.
type TradeIntent struct {
	Action Action  `json:"action"`
	Signal Signal  `json:"signal"`
	Reason string  `json:"reason"`
	Price  float64 `json:"price"`
}

// Hold is the no-op intent.
func Hold() TradeIntent {
	return TradeIntent{Action: ActionHold, Reason: ReasonNone}
}

// Side maps the action to an order side. HOLD has no side.
func (t TradeIntent) Side() (Side, bool) {
	switch t.Action {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	}
	return "", false
}

// TradeSignal is a logged non-HOLD classification.
type TradeSignal struct {
	Pair     string    `json:"pair"`
	Strategy string    `json:"strategy"`
	Action   Action    `json:"action"`
	Signal   Signal    `json:"signal"`
	Reason   string    `json:"reason"`
	Price    float64   `json:"price"`
	Time     time.Time `json:"time"`
}

// Cursor is the rolling strategy state carried across cycles.
type Cursor struct {
	LastBuyPrice  float64 `json:"last_buy_price"`
	LastSellPrice float64 `json:"last_sell_price"`
	LastTradeType Side    `json:"last_trade_type"`
	LastReason    string  `json:"last_reason"`
	TradeNumber   int     `json:"trade_number"`
}

// CurrentSide is the side the next trade has to be on.
// A fresh cursor starts on BUY.
func (c Cursor) CurrentSide() Side {
	if c.LastTradeType == SideBuy {
		return SideSell
	}
	return SideBuy
}

// FirstTrade reports whether nothing has been traded yet.
func (c Cursor) FirstTrade() bool {
	return c.TradeNumber == 0
}
