package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or the current side of a strategy.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the kind of order submitted to the broker.
type OrderType string

const (
	OrderTypeLimit OrderType = "LIMIT"
	OrderTypeStop  OrderType = "STOP"
)

// OrderStatus is the canonical lifecycle state of an order.
// Adapters translate their broker specific states into one of these.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition can happen.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// TimeInForce of an order.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
)

// Order represents an order at any broker (or the paper simulator).
type Order struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	Qty           decimal.Decimal `json:"qty"`
	ExecutedQty   decimal.Decimal `json:"executed_qty"`
	AvgFillPrice  decimal.Decimal `json:"avg_fill_price"`
	TimeInForce   TimeInForce     `json:"time_in_force"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FillPrice returns the average fill price, falling back to the limit price.
func (o Order) FillPrice() decimal.Decimal {
	if !o.AvgFillPrice.IsZero() {
		return o.AvgFillPrice
	}
	if o.Type == OrderTypeStop && !o.StopPrice.IsZero() {
		return o.StopPrice
	}
	return o.Price
}

// OrderRequest holds the parameters for placing an order.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal // limit price
	StopPrice     decimal.Decimal // trigger price for stop orders
	Qty           decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
}

// Balance is the holding of a single asset.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// BalanceSnapshot is a timestamped list of balances. Snapshots are appended, never mutated.
type BalanceSnapshot struct {
	Time     time.Time `json:"time"`
	Balances []Balance `json:"balances"`
}

// Free returns the available quantity of asset in the snapshot.
func (s BalanceSnapshot) Free(asset string) decimal.Decimal {
	for _, b := range s.Balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return decimal.Zero
}

// OpenStopLoss is an outstanding protective sell order.
type OpenStopLoss struct {
	Symbol    string          `json:"symbol"`
	OrderID   string          `json:"order_id"`
	ClientID  string          `json:"client_id"`
	Trigger   decimal.Decimal `json:"trigger"`
	Qty       decimal.Decimal `json:"qty"`
	CreatedAt time.Time       `json:"created_at"`
}

// TradeRecord is an append-only audit entry written once a trade completes.
type TradeRecord struct {
	Pair     string          `json:"pair"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"`
	Signal   Signal          `json:"signal"`
	Reason   string          `json:"reason"`
	Paper    bool            `json:"paper"`
	OrderID  string          `json:"order_id"`
	Time     time.Time       `json:"time"`
	TradeNum int             `json:"trade_num"`
}
