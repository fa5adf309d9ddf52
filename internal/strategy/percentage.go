package strategy

import (
	"spot_trader/internal/indicators"
	"spot_trader/internal/models"
)

// Percentage buys after the price fell BuyPercent below the last sell and sells
// after it rose SellPercent above the last buy.
type Percentage struct{}

func (p *Percentage) Name() models.StrategyName { return models.StrategyPercentage }

func (p *Percentage) MinCandles(models.Settings) int { return 1 }

func (p *Percentage) Reset() {}

func (p *Percentage) Decide(c *Cycle) models.TradeIntent {
	price := c.Latest().Close
	s := c.Settings

	switch c.Cursor.CurrentSide() {
	case models.SideBuy:
		if c.Cursor.FirstTrade() {
			return intent(models.ActionBuy, models.SignalPercent, models.ReasonFirstTrade, price)
		}
		reached := func(v float64) bool { return indicators.DropReached(v, c.Cursor.LastSellPrice, s.BuyPercent) }
		if !reached(price) {
			return models.Hold()
		}
		if c.Policy.ConfirmTrend {
			var ok bool
			if price, ok = c.LookAhead(models.SideBuy, reached); !ok {
				return models.Hold()
			}
		}
		return intent(models.ActionBuy, models.SignalPercent, models.ReasonBuy, price)

	default:
		reached := func(v float64) bool { return indicators.RiseReached(v, c.Cursor.LastBuyPrice, s.SellPercent) }
		if !reached(price) {
			return models.Hold()
		}
		if c.Policy.ConfirmTrend {
			var ok bool
			if price, ok = c.LookAhead(models.SideSell, reached); !ok {
				return models.Hold()
			}
		}
		return intent(models.ActionSell, models.SignalPercent, models.ReasonSell, price)
	}
}
