// Package paper simulates order execution on top of a live market data source.
package paper

import (
	"errors"
	"fmt"
	"sync"

	"spot_trader/internal/clock"
	"spot_trader/internal/market"
	"spot_trader/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when the ledger cannot cover an order.
var ErrInsufficientFunds = errors.New("paper: insufficient funds")

type holding struct {
	free   decimal.Decimal
	locked decimal.Decimal
}

// Simulator implements market.MarketProvider. Market data comes from the wrapped
// provider; orders settle against an in-memory ledger.
// Limit orders fill immediately at their limit price. Stop orders lock the asset and
// fill at the stop price once an observed close is at or below it.
type Simulator struct {
	data  market.MarketProvider
	clock clock.Clock

	mu        sync.Mutex
	asset     string
	quote     string
	ledger    map[string]*holding
	orders    map[string]*models.Order
	lastClose decimal.Decimal
}

var _ market.MarketProvider = (*Simulator)(nil)

// New seeds the ledger with starting units of the quote asset.
func New(data market.MarketProvider, clk clock.Clock, asset, quote string, starting decimal.Decimal) *Simulator {
	s := &Simulator{
		data:   data,
		clock:  clk,
		asset:  asset,
		quote:  quote,
		ledger: map[string]*holding{},
		orders: map[string]*models.Order{},
	}
	s.ledger[asset] = &holding{}
	s.ledger[quote] = &holding{free: starting}
	return s
}

// --- Market Data ---

func (s *Simulator) GetCandlesticks(symbol, interval string, count int) ([]models.Candle, error) {
	candles, err := s.data.GetCandlesticks(symbol, interval, count)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		s.Observe(candles[len(candles)-1].Close)
	}
	return candles, nil
}

func (s *Simulator) GetSupport(symbol string) (float64, error) {
	return s.data.GetSupport(symbol)
}

func (s *Simulator) GetResistance(symbol string) (float64, error) {
	return s.data.GetResistance(symbol)
}

// Observe records the latest traded price and fills any stop it crosses.
func (s *Simulator) Observe(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastClose = decimal.NewFromFloat(price)
	for _, o := range s.orders {
		s.tryFillStop(o)
	}
}

// --- Account ---

func (s *Simulator) GetBalances(asset, quote string) ([]models.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Balance, 0, 2)
	for _, a := range []string{asset, quote} {
		b := models.Balance{Asset: a}
		if h, ok := s.ledger[a]; ok {
			b.Free = h.free
			b.Locked = h.locked
		}
		out = append(out, b)
	}
	return out, nil
}

// --- Execution ---

func (s *Simulator) PlaceOrder(r models.OrderRequest) (*models.Order, error) {
	if !r.Qty.IsPositive() {
		return nil, fmt.Errorf("paper: quantity must be positive, got %s", r.Qty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := &models.Order{
		ID:            uuid.NewString(),
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Side:          r.Side,
		Type:          r.Type,
		Price:         r.Price,
		StopPrice:     r.StopPrice,
		Qty:           r.Qty,
		TimeInForce:   r.TimeInForce,
		Status:        models.OrderStatusNew,
		CreatedAt:     s.clock.Now(),
	}
	if order.TimeInForce == "" {
		order.TimeInForce = models.GTC
	}

	base, quote := s.ledger[s.asset], s.ledger[s.quote]

	switch {
	case r.Type == models.OrderTypeStop:
		if r.Side != models.SideSell {
			return nil, fmt.Errorf("paper: only sell stops are supported")
		}
		if base.free.LessThan(r.Qty) {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, r.Qty, s.asset, base.free)
		}
		base.free = base.free.Sub(r.Qty)
		base.locked = base.locked.Add(r.Qty)
		s.orders[order.ID] = order
		s.tryFillStop(order)

	case r.Side == models.SideBuy:
		cost := r.Price.Mul(r.Qty)
		if quote.free.LessThan(cost) {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, cost, s.quote, quote.free)
		}
		quote.free = quote.free.Sub(cost)
		base.free = base.free.Add(r.Qty)
		fill(order, r.Price)
		s.orders[order.ID] = order

	default:
		if base.free.LessThan(r.Qty) {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, r.Qty, s.asset, base.free)
		}
		base.free = base.free.Sub(r.Qty)
		quote.free = quote.free.Add(r.Price.Mul(r.Qty))
		fill(order, r.Price)
		s.orders[order.ID] = order
	}

	cp := *order
	return &cp, nil
}

func (s *Simulator) CancelOrder(order models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[order.ID]
	if !ok {
		return nil, market.ErrOrderNotFound
	}
	if !o.Status.IsTerminal() {
		if o.Type == models.OrderTypeStop {
			base := s.ledger[s.asset]
			base.locked = base.locked.Sub(o.Qty)
			base.free = base.free.Add(o.Qty)
		}
		o.Status = models.OrderStatusCanceled
	}
	cp := *o
	return &cp, nil
}

func (s *Simulator) GetOrderStatus(order models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[order.ID]
	if !ok {
		return nil, market.ErrOrderNotFound
	}
	s.tryFillStop(o)
	cp := *o
	return &cp, nil
}

// tryFillStop settles an open stop once the last observed close is at or below its trigger.
// Caller holds s.mu.
func (s *Simulator) tryFillStop(o *models.Order) {
	if o.Type != models.OrderTypeStop || o.Status.IsTerminal() {
		return
	}
	if !s.lastClose.IsPositive() || s.lastClose.GreaterThan(o.StopPrice) {
		return
	}
	base, quote := s.ledger[s.asset], s.ledger[s.quote]
	base.locked = base.locked.Sub(o.Qty)
	quote.free = quote.free.Add(o.StopPrice.Mul(o.Qty))
	fill(o, o.StopPrice)
}

func fill(o *models.Order, price decimal.Decimal) {
	o.Status = models.OrderStatusFilled
	o.ExecutedQty = o.Qty
	o.AvgFillPrice = price
}
