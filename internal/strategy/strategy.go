// Package strategy runs the per-pair decision loop and the four strategy families.
package strategy

import (
	"fmt"

	"spot_trader/internal/market"
	"spot_trader/internal/models"
	"spot_trader/internal/trade"
)

// maxLookAhead caps every confirmation loop.
const maxLookAhead = 10

// Strategy classifies one cycle into a trade intent.
type Strategy interface {
	Name() models.StrategyName
	// MinCandles is the number of candles the strategy needs per cycle.
	MinCandles(s models.Settings) int
	Decide(c *Cycle) models.TradeIntent
	// Reset drops any state carried between cycles.
	Reset()
}

// NewStrategy builds the strategy named in s.
func NewStrategy(name models.StrategyName) (Strategy, error) {
	switch name {
	case models.StrategyPercentage:
		return &Percentage{}, nil
	case models.StrategyVolume:
		return &Volume{}, nil
	case models.StrategyBollinger:
		return &Bollinger{}, nil
	case models.StrategyOrderBook:
		return &OrderBook{}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Cycle is everything a strategy may look at while deciding.
type Cycle struct {
	Settings models.Settings
	Policy   models.Policy
	Cursor   models.Cursor
	Candles  []models.Candle
	// Number counts cycles since the engine was created, starting at 0.
	Number int

	Market market.MarketProvider
	Orders *trade.Orchestrator

	engine *Engine
}

// Latest is the newest candle of the cycle.
func (c *Cycle) Latest() models.Candle {
	return c.Candles[len(c.Candles)-1]
}

// Refetch pulls a fresh candle set. Used by confirmation loops.
func (c *Cycle) Refetch() ([]models.Candle, error) {
	return c.engine.fetchOnce(c.Settings, len(c.Candles))
}

// LookAhead runs the mooning/tanking confirmation for side.
// reached tells whether a price still clears the threshold.
// It returns the last observed price and whether the move is confirmed.
func (c *Cycle) LookAhead(side models.Side, reached func(price float64) bool) (float64, bool) {
	return c.engine.lookAhead(c, side, reached)
}

func intent(action models.Action, signal models.Signal, reason string, price float64) models.TradeIntent {
	return models.TradeIntent{Action: action, Signal: signal, Reason: reason, Price: price}
}
