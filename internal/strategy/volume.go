package strategy

import (
	"log"
	"time"

	"spot_trader/internal/indicators"
	"spot_trader/internal/models"
)

// Volume trades volume surges against the price direction and falls back to the
// percentage rules when volume is quiet.
//
// BUY side, first match wins:
//
//	VOLUMESELLBUYOFF  last trade was a VOLUMESELL and price is back above the last sell
//	VOLUMEBUY         volume surge on a falling candle
//	BUY / FIRSTTRADE  price fell BuyPercent below the last sell, or nothing traded yet
//
// The SELL side mirrors it with VOLUMEBUYSELLOFF, VOLUMESELL and SELL.
type Volume struct {
	lastCloseTime time.Time
}

func (v *Volume) Name() models.StrategyName { return models.StrategyVolume }

func (v *Volume) MinCandles(s models.Settings) int {
	w := s.VolumeWindow
	if w < 1 {
		w = 1
	}
	return w + 1
}

func (v *Volume) Reset() {
	v.lastCloseTime = time.Time{}
}

func (v *Volume) Decide(c *Cycle) models.TradeIntent {
	latest := c.Latest()
	if !v.lastCloseTime.IsZero() && latest.CloseTime.Equal(v.lastCloseTime) {
		return models.Hold()
	}
	v.lastCloseTime = latest.CloseTime

	candles := c.Candles
	var prev models.TradeIntent
	for i := 0; i < maxLookAhead; i++ {
		in := classifyVolume(c.Settings, c.Cursor, candles)
		if in.Action == models.ActionHold {
			return in
		}
		if !c.Policy.ConfirmTrend || (i > 0 && in.Reason == prev.Reason) {
			return in
		}
		prev = in

		c.engine.clock.Sleep(c.Settings.LookAheadDelay())
		next, err := c.Refetch()
		if err != nil {
			log.Printf("Warning: [Volume] confirmation fetch failed: %v", err)
			return models.Hold()
		}
		candles = next
	}
	return prev
}

// classifyVolume labels the newest candle of candles for the cursor's side.
func classifyVolume(s models.Settings, cur models.Cursor, candles []models.Candle) models.TradeIntent {
	n := len(candles)
	latest := candles[n-1]
	price := latest.Close

	window := s.VolumeWindow
	if window < 1 {
		window = 1
	}
	surge := false
	var prevClose float64
	if n > window {
		avg := indicators.AverageVolume(candles[n-1-window : n-1])
		momentum := indicators.VolumeMomentum(avg, latest.Volume) * 100
		surge = avg > 0 && momentum >= s.VolumePercent
		prevClose = candles[n-2].Close
	}

	if cur.CurrentSide() == models.SideBuy {
		switch {
		case cur.LastReason == models.ReasonVolumeSell && price > cur.LastSellPrice:
			return intent(models.ActionBuy, models.SignalVolume, models.ReasonVolumeSellBuyOff, price)
		case surge && price < prevClose:
			return intent(models.ActionBuy, models.SignalVolume, models.ReasonVolumeBuy, price)
		case cur.FirstTrade():
			return intent(models.ActionBuy, models.SignalPercent, models.ReasonFirstTrade, price)
		case indicators.DropReached(price, cur.LastSellPrice, s.BuyPercent):
			return intent(models.ActionBuy, models.SignalPercent, models.ReasonBuy, price)
		}
		return models.Hold()
	}

	switch {
	case cur.LastReason == models.ReasonVolumeBuy && price < cur.LastBuyPrice:
		return intent(models.ActionSell, models.SignalVolume, models.ReasonVolumeBuySellOff, price)
	case surge && price > prevClose:
		return intent(models.ActionSell, models.SignalVolume, models.ReasonVolumeSell, price)
	case indicators.RiseReached(price, cur.LastBuyPrice, s.SellPercent):
		return intent(models.ActionSell, models.SignalPercent, models.ReasonSell, price)
	}
	return models.Hold()
}
