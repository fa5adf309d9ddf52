package strategy

import (
	"spot_trader/internal/indicators"
	"spot_trader/internal/models"
)

// Bollinger buys below the lower band and sells above the upper band once the
// sell threshold over the last buy is reached.
type Bollinger struct{}

func (b *Bollinger) Name() models.StrategyName { return models.StrategyBollinger }

// MinCandles asks for one extra candle so the first band has a volume delta.
func (b *Bollinger) MinCandles(models.Settings) int { return indicators.BollingerPeriod + 1 }

func (b *Bollinger) Reset() {}

func (b *Bollinger) Decide(c *Cycle) models.TradeIntent {
	bands := indicators.BollingerBands(c.Candles, indicators.BollingerPeriod, indicators.BollingerFactor)
	if len(bands) == 0 {
		return models.Hold()
	}
	last := bands[len(bands)-1]
	price := last.Close

	if c.Cursor.CurrentSide() == models.SideBuy {
		if price < last.LowerBand {
			return intent(models.ActionBuy, models.SignalBollingerLower, models.ReasonBuy, price)
		}
		return models.Hold()
	}

	if price > last.UpperBand && indicators.RiseReached(price, c.Cursor.LastBuyPrice, c.Settings.SellPercent) {
		return intent(models.ActionSell, models.SignalBollingerUpper, models.ReasonSell, price)
	}
	return models.Hold()
}
