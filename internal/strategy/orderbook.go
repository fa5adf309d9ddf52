package strategy

import (
	"log"

	"spot_trader/internal/indicators"
	"spot_trader/internal/models"
)

// OrderBook trades against the strongest bid and ask walls.
// BUY when support sits below the last sell, SELL when resistance sits above the
// last buy. A drop of StopLossPercent under the last buy forces a SELL.
type OrderBook struct{}

func (o *OrderBook) Name() models.StrategyName { return models.StrategyOrderBook }

func (o *OrderBook) MinCandles(models.Settings) int { return 1 }

func (o *OrderBook) Reset() {}

func (o *OrderBook) Decide(c *Cycle) models.TradeIntent {
	s := c.Settings
	price := c.Latest().Close
	symbol := s.Symbol

	if s.CeilingFloorInterval > 0 && c.Number%s.CeilingFloorInterval == 0 && !o.bookIntact(c) {
		return models.Hold()
	}

	if c.Cursor.CurrentSide() == models.SideSell {
		// A zero StopLossPercent disables the check, as it does for stop orders.
		if s.StopLossPercent > 0 && indicators.DropReached(price, c.Cursor.LastBuyPrice, s.StopLossPercent) {
			return intent(models.ActionSell, models.SignalStopLoss, models.ReasonStopLoss, price)
		}
		resistance, err := c.Market.GetResistance(symbol)
		if err != nil {
			log.Printf("Warning: [OrderBook] resistance for %s: %v", symbol, err)
			return models.Hold()
		}
		if resistance > 0 && resistance > c.Cursor.LastBuyPrice {
			return intent(models.ActionSell, models.SignalOrderBook, models.ReasonSell, price)
		}
		return models.Hold()
	}

	support, err := c.Market.GetSupport(symbol)
	if err != nil {
		log.Printf("Warning: [OrderBook] support for %s: %v", symbol, err)
		return models.Hold()
	}
	if support <= 0 {
		return models.Hold()
	}
	if c.Cursor.FirstTrade() {
		return intent(models.ActionBuy, models.SignalOrderBook, models.ReasonFirstTrade, price)
	}
	if support < c.Cursor.LastSellPrice {
		return intent(models.ActionBuy, models.SignalOrderBook, models.ReasonBuy, price)
	}
	return models.Hold()
}

// bookIntact is the ceiling/floor check. When either side of the book evaporated
// every open stop-loss is canceled and the cycle holds.
func (o *OrderBook) bookIntact(c *Cycle) bool {
	symbol := c.Settings.Symbol
	support, err := c.Market.GetSupport(symbol)
	if err != nil {
		log.Printf("Warning: [CeilingFloor] support for %s: %v", symbol, err)
		return false
	}
	resistance, err := c.Market.GetResistance(symbol)
	if err != nil {
		log.Printf("Warning: [CeilingFloor] resistance for %s: %v", symbol, err)
		return false
	}
	if support != 0 && resistance != 0 {
		return true
	}

	log.Printf("Warning: [CeilingFloor] %s book empty (support %f, resistance %f), canceling stop-losses", symbol, support, resistance)
	for len(c.Orders.OpenStopLosses()) > 0 {
		if !c.Orders.CancelStopLoss() {
			break
		}
	}
	return false
}
