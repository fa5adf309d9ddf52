package strategy

import (
	"testing"

	"spot_trader/internal/models"
)

func TestVolume_BuyOnSurgeWithFallingPrice(t *testing.T) {
	f := newFeed([]float64{100, 99}, []float64{10, 25})
	s := paperSettings(models.StrategyVolume)
	s.VolumeWindow = 1
	s.VolumePercent = 100
	e, orch, _, _ := newPaperEngine(t, f, s)
	f.shown = 1 // both candles visible on the first fetch

	runCycles(t, e, 1)

	sigs := orch.RecentSignals(0)
	if len(sigs) != 1 {
		t.Fatalf("Expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].Reason != models.ReasonVolumeBuy || sigs[0].Signal != models.SignalVolume {
		t.Errorf("Expected VOLUMEBUY, got %s/%s", sigs[0].Signal, sigs[0].Reason)
	}
	if cur := e.Cursor(); cur.LastReason != models.ReasonVolumeBuy || cur.LastBuyPrice != 99 {
		t.Errorf("Expected cursor on VOLUMEBUY@99, got %+v", cur)
	}
}

func TestVolume_SkipsUnrolledCandle(t *testing.T) {
	f := newFeed([]float64{100, 99}, []float64{10, 10})
	s := paperSettings(models.StrategyVolume)

	v := &Volume{}
	candles, _ := f.GetCandlesticks(s.Symbol, s.CandleInterval, 2)
	c := &Cycle{Settings: s, Policy: s.Policy(), Candles: candles}

	if in := v.Decide(c); in.Action != models.ActionBuy {
		t.Fatalf("Expected FIRSTTRADE buy, got %s", in.Action)
	}
	if in := v.Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD for the same close time, got %s", in.Action)
	}
	v.Reset()
	if in := v.Decide(c); in.Action != models.ActionBuy {
		t.Errorf("Expected a decision after Reset, got %s", in.Action)
	}
}

func TestClassifyVolume(t *testing.T) {
	s := paperSettings(models.StrategyVolume)
	s.VolumeWindow = 2
	s.VolumePercent = 50

	mk := func(closes, volumes []float64) []models.Candle {
		var out []models.Candle
		for i := range closes {
			out = append(out, models.Candle{Close: closes[i], Volume: volumes[i]})
		}
		return out
	}
	onSell := func(lastBuy float64, reason string) models.Cursor {
		return models.Cursor{LastBuyPrice: lastBuy, LastTradeType: models.SideBuy, LastReason: reason, TradeNumber: 1}
	}
	onBuy := func(lastSell float64, reason string) models.Cursor {
		return models.Cursor{LastSellPrice: lastSell, LastTradeType: models.SideSell, LastReason: reason, TradeNumber: 2}
	}

	tests := []struct {
		name    string
		cursor  models.Cursor
		candles []models.Candle
		want    string
	}{
		{"volume sell-off bought back", onBuy(100, models.ReasonVolumeSell), mk([]float64{100, 100, 101}, []float64{10, 10, 10}), models.ReasonVolumeSellBuyOff},
		{"quiet drop", onBuy(100, models.ReasonSell), mk([]float64{100, 99, 98.5}, []float64{10, 10, 10}), models.ReasonBuy},
		{"quiet flat", onBuy(100, models.ReasonSell), mk([]float64{100, 100, 99.5}, []float64{10, 10, 10}), models.ReasonNone},
		{"surge on rise", onSell(100, models.ReasonBuy), mk([]float64{100, 100, 100.2}, []float64{10, 10, 16}), models.ReasonVolumeSell},
		{"volume buy failed", onSell(100, models.ReasonVolumeBuy), mk([]float64{100, 100, 99.8}, []float64{10, 10, 10}), models.ReasonVolumeBuySellOff},
		{"quiet rise", onSell(100, models.ReasonBuy), mk([]float64{100, 100, 101.5}, []float64{10, 10, 10}), models.ReasonSell},
		{"surge below threshold", onSell(100, models.ReasonBuy), mk([]float64{100, 100, 100.2}, []float64{10, 10, 14}), models.ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyVolume(s, tt.cursor, tt.candles)
			if got.Reason != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Reason)
			}
		})
	}
}

func bollingerCandles(last float64) []models.Candle {
	closes := make([]float64, 0, 22)
	for i := 0; i < 21; i++ {
		if i%2 == 0 {
			closes = append(closes, 99)
		} else {
			closes = append(closes, 101)
		}
	}
	closes = append(closes, last)
	f := newFeed(closes, nil)
	f.shown = len(closes)
	candles, _ := f.GetCandlesticks("BTCUSDT", "1m", len(closes))
	return candles
}

func TestBollinger_BuyBelowLowerBand(t *testing.T) {
	s := paperSettings(models.StrategyBollinger)
	c := &Cycle{Settings: s, Policy: s.Policy(), Candles: bollingerCandles(90)}

	in := (&Bollinger{}).Decide(c)
	if in.Action != models.ActionBuy || in.Signal != models.SignalBollingerLower {
		t.Errorf("Expected BUY on lower band, got %s/%s", in.Action, in.Signal)
	}

	c.Candles = bollingerCandles(100)
	if in := (&Bollinger{}).Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD inside the bands, got %s", in.Action)
	}
}

func TestBollinger_SellNeedsBandAndThreshold(t *testing.T) {
	s := paperSettings(models.StrategyBollinger)
	c := &Cycle{
		Settings: s,
		Policy:   s.Policy(),
		Cursor:   models.Cursor{LastBuyPrice: 100, LastTradeType: models.SideBuy, TradeNumber: 1},
		Candles:  bollingerCandles(120),
	}
	in := (&Bollinger{}).Decide(c)
	if in.Action != models.ActionSell || in.Signal != models.SignalBollingerUpper {
		t.Errorf("Expected SELL on upper band, got %s/%s", in.Action, in.Signal)
	}

	// Above the band but under the sell threshold over the last buy.
	c.Cursor.LastBuyPrice = 119.9
	if in := (&Bollinger{}).Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD below the sell threshold, got %s", in.Action)
	}
}

func TestOrderBook_Decisions(t *testing.T) {
	f := newFeed([]float64{97.5}, nil)
	s := paperSettings(models.StrategyOrderBook)
	s.StopLossPercent = 2
	s.CeilingFloorInterval = 5
	e, orch, _, _ := newPaperEngine(t, f, s)
	candles, _ := f.GetCandlesticks(s.Symbol, s.CandleInterval, 1)

	c := &Cycle{
		Settings: s,
		Policy:   s.Policy(),
		Cursor:   models.Cursor{LastBuyPrice: 100, LastTradeType: models.SideBuy, TradeNumber: 1},
		Candles:  candles,
		Number:   1,
		Market:   f,
		Orders:   orch,
		engine:   e,
	}
	ob := &OrderBook{}

	if in := ob.Decide(c); in.Action != models.ActionSell || in.Reason != models.ReasonStopLoss {
		t.Errorf("Expected STOPLOSS sell at 2.5%% under the last buy, got %s/%s", in.Action, in.Reason)
	}

	c.Cursor.LastBuyPrice = 97
	f.resistance = 101
	if in := ob.Decide(c); in.Action != models.ActionSell || in.Signal != models.SignalOrderBook {
		t.Errorf("Expected SELL on resistance above last buy, got %s/%s", in.Action, in.Signal)
	}
	f.resistance = 96
	if in := ob.Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD with resistance under last buy, got %s", in.Action)
	}

	c.Cursor = models.Cursor{LastSellPrice: 100, LastTradeType: models.SideSell, TradeNumber: 2}
	f.support = 99
	if in := ob.Decide(c); in.Action != models.ActionBuy {
		t.Errorf("Expected BUY with support under last sell, got %s", in.Action)
	}
	f.support = 100.5
	if in := ob.Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD with support above last sell, got %s", in.Action)
	}

	// Stop-losses disabled: a drop is judged by the book only.
	c.Settings.StopLossPercent = 0
	c.Cursor = models.Cursor{LastBuyPrice: 100, LastTradeType: models.SideBuy, TradeNumber: 1}
	f.resistance = 96
	if in := ob.Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD with stop-losses disabled, got %s/%s", in.Action, in.Reason)
	}
}

func TestOrderBook_CeilingFloorHolds(t *testing.T) {
	f := newFeed([]float64{100}, nil)
	f.resistance = 0
	s := paperSettings(models.StrategyOrderBook)
	s.CeilingFloorInterval = 5
	e, orch, _, _ := newPaperEngine(t, f, s)
	candles, _ := f.GetCandlesticks(s.Symbol, s.CandleInterval, 1)

	c := &Cycle{Settings: s, Policy: s.Policy(), Candles: candles, Number: 5, Market: f, Orders: orch, engine: e}
	if in := (&OrderBook{}).Decide(c); in.Action != models.ActionHold {
		t.Errorf("Expected HOLD on an evaporated book, got %s", in.Action)
	}

	// Off the check cadence the empty ask side does not block a first buy.
	c.Number = 6
	if in := (&OrderBook{}).Decide(c); in.Action != models.ActionBuy {
		t.Errorf("Expected first BUY off cadence, got %s", in.Action)
	}
}
