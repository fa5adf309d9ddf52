// Package trade turns trade intents into confirmed, retried or aborted orders and
// keeps the balance history and the open stop-loss queue consistent.
package trade

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"spot_trader/internal/clock"
	"spot_trader/internal/market"
	"spot_trader/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// ValidatePolls is how many times an order is polled before it is canceled.
	ValidatePolls = 5
	// ValidateDelay is the pause between fill polls.
	ValidateDelay = 1500 * time.Millisecond

	cancelPolls = 5
	cancelDelay = 500 * time.Millisecond

	historyLimit = 500
)

// ErrNothingToTrade is returned when the computed quantity rounds to zero.
var ErrNothingToTrade = errors.New("quantity rounds to zero")

// Recorder persists the append-only logs.
type Recorder interface {
	RecordTrade(models.TradeRecord) error
	RecordBalances(models.BalanceSnapshot) error
	RecordSignal(models.TradeSignal) error
}

// Notifier receives human readable trade notifications.
type Notifier interface {
	Notify(msg string)
}

// Orchestrator owns the order lifecycle for one trading pair.
type Orchestrator struct {
	provider market.MarketProvider
	clock    clock.Clock
	recorder Recorder
	notifier Notifier

	mu         sync.RWMutex
	settings   models.Settings
	stopLosses []models.OpenStopLoss
	trades     []models.TradeRecord
	balances   []models.BalanceSnapshot
	signals    []models.TradeSignal
	// stop-loss found filled while canceling it; reported by the next StoppedOutCheck
	pendingStopOut float64
	// lowest streamed price since the last StoppedOutCheck
	streamLow float64
}

// New wires an orchestrator. recorder and notifier may be nil.
func New(provider market.MarketProvider, clk clock.Clock, recorder Recorder, notifier Notifier) *Orchestrator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Orchestrator{
		provider: provider,
		clock:    clk,
		recorder: recorder,
		notifier: notifier,
		settings: models.DefaultSettings(),
	}
}

// SetSettings replaces the settings snapshot used for sizing and stop-loss placement.
func (o *Orchestrator) SetSettings(s models.Settings) {
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
}

// SetProvider swaps the exchange adapter, e.g. after a mode change. Open
// stop-losses live on the old adapter, so they are canceled there first. A stop
// that cannot be canceled keeps the old adapter in place and returns an error.
// A stop found filled while draining is still reported by the next StoppedOutCheck.
func (o *Orchestrator) SetProvider(p market.MarketProvider) error {
	for {
		head, ok := o.head()
		if !ok {
			break
		}
		if o.CancelStopLoss() {
			continue
		}
		if next, ok := o.head(); ok && next.OrderID == head.OrderID {
			return fmt.Errorf("stop-loss %s still open on the current adapter", head.OrderID)
		}
	}

	o.mu.Lock()
	o.provider = p
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) adapter() market.MarketProvider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.provider
}

func (o *Orchestrator) snapshot() models.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// PlaceTrade sizes, pads and submits a limit order for intent.
// BUY spends the whole free quote balance, SELL sells the whole free asset balance.
func (o *Orchestrator) PlaceTrade(intent models.TradeIntent) (*models.Order, error) {
	side, ok := intent.Side()
	if !ok {
		return nil, fmt.Errorf("intent %s has no side", intent.Action)
	}
	if intent.Price <= 0 {
		return nil, fmt.Errorf("invalid intent price %f", intent.Price)
	}
	s := o.snapshot()

	balances, err := o.adapter().GetBalances(s.Asset, s.Quote)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	snap := models.BalanceSnapshot{Balances: balances}

	price := PaddedPrice(side, decimal.NewFromFloat(intent.Price), s.PricePadding, s.PricePrecision)
	var qty decimal.Decimal
	if side == models.SideBuy {
		qty = snap.Free(s.Quote).Div(price).Truncate(s.QuantityPrecision)
	} else {
		qty = snap.Free(s.Asset).Truncate(s.QuantityPrecision)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s at %s", ErrNothingToTrade, side, s.Symbol, price)
	}

	log.Printf("[PlaceTrade] %s %s %s @ %s (%s/%s)", side, qty, s.Symbol, price, intent.Signal, intent.Reason)
	return o.adapter().PlaceOrder(models.OrderRequest{
		Symbol:        s.Symbol,
		Side:          side,
		Type:          models.OrderTypeLimit,
		Price:         price,
		Qty:           qty,
		TimeInForce:   models.GTC,
		ClientOrderID: uuid.NewString(),
	})
}

// PaddedPrice moves price by padding percent in the direction that favors the
// order: down for BUY, up for SELL. The result is rounded to precision decimals.
func PaddedPrice(side models.Side, price decimal.Decimal, padding float64, precision int32) decimal.Decimal {
	pad := decimal.NewFromFloat(padding).Div(decimal.NewFromInt(100))
	if side == models.SideBuy {
		price = price.Mul(decimal.NewFromInt(1).Sub(pad))
	} else {
		price = price.Mul(decimal.NewFromInt(1).Add(pad))
	}
	return price.Round(precision)
}

// ValidateTradeComplete polls order until it fills, at most ValidatePolls times.
// On success order is updated with the filled state. An order that is still open
// after the last poll is canceled exactly once.
func (o *Orchestrator) ValidateTradeComplete(order *models.Order) bool {
	if order == nil {
		return false
	}
	if order.Status == models.OrderStatusFilled {
		return true
	}

	for i := 0; i < ValidatePolls; i++ {
		if i > 0 {
			o.clock.Sleep(ValidateDelay)
		}
		st, err := o.adapter().GetOrderStatus(*order)
		if err != nil {
			log.Printf("Warning: [ValidateTradeComplete] poll %d for %s failed: %v", i+1, order.ID, err)
			continue
		}
		*order = *st
		if st.Status == models.OrderStatusFilled {
			return true
		}
		if st.Status.IsTerminal() {
			log.Printf("Warning: [ValidateTradeComplete] order %s ended %s", order.ID, st.Status)
			return false
		}
	}

	log.Printf("Warning: [ValidateTradeComplete] order %s not filled after %d polls, canceling", order.ID, ValidatePolls)
	if _, err := o.adapter().CancelOrder(*order); err != nil {
		log.Printf("ERROR: [ValidateTradeComplete] cancel %s failed: %v", order.ID, err)
	}
	return false
}

// PlaceStopLoss places a protective stop below price for qty.
// A zero StopLossPercent disables stop-losses.
func (o *Orchestrator) PlaceStopLoss(price float64, qty decimal.Decimal) error {
	s := o.snapshot()
	if s.StopLossPercent == 0 {
		return nil
	}
	if !qty.IsPositive() {
		return fmt.Errorf("stop-loss quantity must be positive, got %s", qty)
	}

	trigger := StopTrigger(price, s.StopLossPercent, s.PricePrecision)
	order, err := o.adapter().PlaceOrder(models.OrderRequest{
		Symbol:        s.Symbol,
		Side:          models.SideSell,
		Type:          models.OrderTypeStop,
		StopPrice:     trigger,
		Qty:           qty,
		TimeInForce:   models.GTC,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("place stop-loss: %w", err)
	}

	o.mu.Lock()
	o.stopLosses = append(o.stopLosses, models.OpenStopLoss{
		Symbol:    s.Symbol,
		OrderID:   order.ID,
		ClientID:  order.ClientOrderID,
		Trigger:   trigger,
		Qty:       qty,
		CreatedAt: o.clock.Now(),
	})
	o.mu.Unlock()

	log.Printf("[PlaceStopLoss] %s %s stop @ %s (order %s)", qty, s.Symbol, trigger, order.ID)
	return nil
}

// StopTrigger is price - price*|pct|/100 rounded to precision decimals.
func StopTrigger(price, pct float64, precision int32) decimal.Decimal {
	p := decimal.NewFromFloat(price)
	cut := p.Mul(decimal.NewFromFloat(pct).Abs()).Div(decimal.NewFromInt(100))
	return p.Sub(cut).Round(precision)
}

// CancelStopLoss cancels the oldest open stop-loss and waits for the broker to confirm.
// An empty queue is a success.
func (o *Orchestrator) CancelStopLoss() bool {
	head, ok := o.head()
	if !ok {
		return true
	}
	ref := models.Order{ID: head.OrderID, ClientOrderID: head.ClientID, Symbol: head.Symbol}

	if _, err := o.adapter().CancelOrder(ref); err != nil {
		if errors.Is(err, market.ErrOrderNotFound) {
			log.Printf("Warning: [CancelStopLoss] %s unknown to broker, dropping", head.OrderID)
			o.pop()
			return true
		}
		log.Printf("ERROR: [CancelStopLoss] cancel %s failed: %v", head.OrderID, err)
	}

	for i := 0; i < cancelPolls; i++ {
		if i > 0 {
			o.clock.Sleep(cancelDelay)
		}
		st, err := o.adapter().GetOrderStatus(ref)
		if err != nil {
			log.Printf("Warning: [CancelStopLoss] poll %d for %s failed: %v", i+1, head.OrderID, err)
			continue
		}
		switch st.Status {
		case models.OrderStatusCanceled, models.OrderStatusExpired, models.OrderStatusRejected:
			o.pop()
			return true
		case models.OrderStatusFilled:
			// Stopped out before the cancel landed; the next StoppedOutCheck reports it.
			price := o.completeStopOut(head, st)
			o.mu.Lock()
			o.pendingStopOut = price
			o.mu.Unlock()
			return false
		}
	}

	log.Printf("ERROR: [CancelStopLoss] %s not confirmed canceled", head.OrderID)
	return false
}

// ObservePrice records a streamed trade print between cycles.
func (o *Orchestrator) ObservePrice(price float64) {
	if price <= 0 {
		return
	}
	o.mu.Lock()
	if o.streamLow == 0 || price < o.streamLow {
		o.streamLow = price
	}
	o.mu.Unlock()
}

// StoppedOutCheck reports whether the oldest stop-loss executed at price.
// It returns the sell price when it did and 0 otherwise.
// A streamed price below price since the last check counts as the low.
func (o *Orchestrator) StoppedOutCheck(price float64) float64 {
	o.mu.Lock()
	if o.pendingStopOut > 0 {
		p := o.pendingStopOut
		o.pendingStopOut = 0
		o.mu.Unlock()
		return p
	}
	low := o.streamLow
	o.streamLow = 0
	o.mu.Unlock()

	if low > 0 && low < price {
		price = low
	}

	head, ok := o.head()
	if !ok {
		return 0
	}
	if decimal.NewFromFloat(price).GreaterThan(head.Trigger) {
		return 0
	}

	ref := models.Order{ID: head.OrderID, ClientOrderID: head.ClientID, Symbol: head.Symbol, Type: models.OrderTypeStop}
	for i := 0; i < ValidatePolls; i++ {
		if i > 0 {
			o.clock.Sleep(ValidateDelay)
		}
		st, err := o.adapter().GetOrderStatus(ref)
		if err != nil {
			log.Printf("Warning: [StoppedOutCheck] poll %d for %s failed: %v", i+1, head.OrderID, err)
			continue
		}
		if st.Status == models.OrderStatusFilled {
			return o.completeStopOut(head, st)
		}
		if st.Status.IsTerminal() {
			log.Printf("Warning: [StoppedOutCheck] stop-loss %s ended %s", head.OrderID, st.Status)
			o.pop()
			return 0
		}
	}
	return 0
}

func (o *Orchestrator) completeStopOut(head models.OpenStopLoss, st *models.Order) float64 {
	fill := st.FillPrice()
	if fill.IsZero() {
		fill = head.Trigger
	}
	qty := st.ExecutedQty
	if qty.IsZero() {
		qty = head.Qty
	}

	o.pop()
	s := o.snapshot()
	o.appendTrade(models.TradeRecord{
		Pair:    s.Symbol,
		Side:    models.SideSell,
		Price:   fill,
		Qty:     qty,
		Signal:  models.SignalStopLoss,
		Reason:  models.ReasonStopLoss,
		Paper:   s.IsPaper(),
		OrderID: head.OrderID,
		Time:    o.clock.Now(),
	})
	if err := o.UpdateBalances(); err != nil {
		log.Printf("ERROR: [UpdateBalances] %v", err)
	}
	o.notify(fmt.Sprintf("🛑 Stop-loss filled: %s %s @ %s", qty, s.Symbol, fill))

	price, _ := fill.Float64()
	return price
}

// UpdateBalances fetches balances, appends a snapshot and persists it.
func (o *Orchestrator) UpdateBalances() error {
	s := o.snapshot()
	balances, err := o.adapter().GetBalances(s.Asset, s.Quote)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}
	snap := models.BalanceSnapshot{Time: o.clock.Now(), Balances: balances}

	o.mu.Lock()
	o.balances = appendBounded(o.balances, snap)
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordBalances(snap); err != nil {
			return fmt.Errorf("persist balances: %w", err)
		}
	}
	return nil
}

// Execute runs place, validate, record and balance refresh for one intent.
// Failures are logged and reported as (nil, false): no trade happened this cycle.
func (o *Orchestrator) Execute(intent models.TradeIntent, tradeNum int) (*models.TradeRecord, bool) {
	order, err := o.PlaceTrade(intent)
	if err != nil {
		log.Printf("ERROR: [PlaceTrade] %v", err)
		return nil, false
	}
	if !o.ValidateTradeComplete(order) {
		return nil, false
	}

	s := o.snapshot()
	rec := models.TradeRecord{
		Pair:     s.Symbol,
		Side:     order.Side,
		Price:    order.FillPrice(),
		Qty:      order.ExecutedQty,
		Signal:   intent.Signal,
		Reason:   intent.Reason,
		Paper:    s.IsPaper(),
		OrderID:  order.ID,
		Time:     o.clock.Now(),
		TradeNum: tradeNum,
	}
	if rec.Side == "" {
		rec.Side, _ = intent.Side()
	}
	if rec.Qty.IsZero() {
		rec.Qty = order.Qty
	}
	o.appendTrade(rec)

	if err := o.UpdateBalances(); err != nil {
		log.Printf("ERROR: [UpdateBalances] %v", err)
	}

	mode := "LIVE"
	if rec.Paper {
		mode = "PAPER"
	}
	o.notify(fmt.Sprintf("✅ %s %s %s %s @ %s (%s)", mode, rec.Side, rec.Qty, rec.Pair, rec.Price, rec.Reason))
	return &rec, true
}

// RecordSignal appends a non-HOLD classification to the signal log.
func (o *Orchestrator) RecordSignal(sig models.TradeSignal) {
	o.mu.Lock()
	o.signals = appendBounded(o.signals, sig)
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordSignal(sig); err != nil {
			log.Printf("ERROR: [RecordSignal] %v", err)
		}
	}
}

func (o *Orchestrator) appendTrade(rec models.TradeRecord) {
	o.mu.Lock()
	o.trades = appendBounded(o.trades, rec)
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordTrade(rec); err != nil {
			log.Printf("ERROR: [RecordTrade] %v", err)
		}
	}
}

func (o *Orchestrator) notify(msg string) {
	if o.notifier != nil {
		o.notifier.Notify(msg)
	}
}

func (o *Orchestrator) head() (models.OpenStopLoss, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.stopLosses) == 0 {
		return models.OpenStopLoss{}, false
	}
	return o.stopLosses[0], true
}

func (o *Orchestrator) pop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stopLosses) > 0 {
		o.stopLosses = o.stopLosses[1:]
	}
}

// --- Read accessors (copies) ---

// RecentTrades returns up to n of the latest trades, oldest first. n <= 0 returns all.
func (o *Orchestrator) RecentTrades(n int) []models.TradeRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return tail(o.trades, n)
}

// BalanceHistory returns up to n of the latest balance snapshots, oldest first.
func (o *Orchestrator) BalanceHistory(n int) []models.BalanceSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return tail(o.balances, n)
}

// OpenStopLosses returns the queue, oldest first.
func (o *Orchestrator) OpenStopLosses() []models.OpenStopLoss {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return tail(o.stopLosses, 0)
}

// RecentSignals returns up to n of the latest signals, oldest first.
func (o *Orchestrator) RecentSignals(n int) []models.TradeSignal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return tail(o.signals, n)
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	out := make([]T, n)
	copy(out, s[len(s)-n:])
	return out
}

func appendBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyLimit {
		s = s[len(s)-historyLimit:]
	}
	return s
}
