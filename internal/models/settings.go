package models

import (
	"fmt"
	"strings"
	"time"
)

// SettingsVersion is the current schema version of the settings file.
const SettingsVersion = "1.2"

// StrategyName selects one of the strategy engines.
type StrategyName string

const (
	StrategyPercentage StrategyName = "percentage"
	StrategyVolume     StrategyName = "volume"
	StrategyBollinger  StrategyName = "bollinger"
	StrategyOrderBook  StrategyName = "orderbook"
)

// TradingMode selects live execution or the paper simulator.
type TradingMode string

const (
	ModeLive  TradingMode = "live"
	ModePaper TradingMode = "paper"
)

// Settings is the configuration snapshot a cycle runs against.
// Percent fields are expressed in percent (1.5 means 1.5%).
type Settings struct {
	Version  string       `json:"version"`
	Exchange string       `json:"exchange"`
	Symbol   string       `json:"symbol"`      // e.g. BTCUSDT or BTC/USD
	Asset    string       `json:"asset"`       // base asset, e.g. BTC
	Quote    string       `json:"quote"`       // quote asset, e.g. USDT
	Strategy StrategyName `json:"strategy"`
	Mode     TradingMode  `json:"mode"`

	BuyPercent      float64 `json:"buy_percent"`
	SellPercent     float64 `json:"sell_percent"`
	StopLossPercent float64 `json:"stop_loss_percent"`

	PriceCheckInterval int    `json:"price_check_interval"` // seconds
	CandleInterval     string `json:"candle_interval"`
	CandleCount        int    `json:"candle_count"`

	VolumeWindow  int     `json:"volume_window"`  // candles averaged for the momentum baseline
	VolumePercent float64 `json:"volume_percent"` // momentum threshold

	MooningTankingTime int `json:"mooning_tanking_time"` // seconds between look-ahead samples

	StartingAmount float64 `json:"starting_amount"` // paper quote balance

	ResetInterval        int     `json:"reset_interval"`         // cycles between settings checkpoints
	CeilingFloorInterval int     `json:"ceiling_floor_interval"` // cycles between order book sanity checks
	PricePadding         float64 `json:"price_padding"`          // percent
	QuantityPrecision    int32   `json:"quantity_precision"`
	PricePrecision       int32   `json:"price_precision"`

	// Policy switches. Pointers so a partial update can tell "unset" from false.
	StopLossFirst *bool `json:"stop_loss_first,omitempty"`
	ConfirmTrend  *bool `json:"confirm_trend,omitempty"`
}

// DefaultSettings returns a complete paper-mode configuration.
func DefaultSettings() Settings {
	return Settings{
		Version:              SettingsVersion,
		Exchange:             "binance",
		Symbol:               "BTCUSDT",
		Asset:                "BTC",
		Quote:                "USDT",
		Strategy:             StrategyPercentage,
		Mode:                 ModePaper,
		BuyPercent:           1.0,
		SellPercent:          1.0,
		StopLossPercent:      2.0,
		PriceCheckInterval:   30,
		CandleInterval:       "1m",
		CandleCount:          30,
		VolumeWindow:         1,
		VolumePercent:        100,
		MooningTankingTime:   10,
		StartingAmount:       1000,
		ResetInterval:        10,
		CeilingFloorInterval: 5,
		PricePadding:         0.01,
		QuantityPrecision:    6,
		PricePrecision:       8,
		StopLossFirst:        Bool(true),
		ConfirmTrend:         Bool(true),
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Merge overlays every non-zero field of update onto s and reports whether anything changed.
func (s Settings) Merge(update Settings) (Settings, bool) {
	out := s
	changed := false

	str := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	f64 := func(dst *float64, v float64) {
		if v != 0 && *dst != v {
			*dst = v
			changed = true
		}
	}
	i := func(dst *int, v int) {
		if v != 0 && *dst != v {
			*dst = v
			changed = true
		}
	}
	i32 := func(dst *int32, v int32) {
		if v != 0 && *dst != v {
			*dst = v
			changed = true
		}
	}
	b := func(dst **bool, v *bool) {
		if v != nil && (*dst == nil || **dst != *v) {
			*dst = Bool(*v)
			changed = true
		}
	}

	str(&out.Exchange, update.Exchange)
	str(&out.Symbol, update.Symbol)
	str(&out.Asset, update.Asset)
	str(&out.Quote, update.Quote)
	if update.Strategy != "" && out.Strategy != update.Strategy {
		out.Strategy = update.Strategy
		changed = true
	}
	if update.Mode != "" && out.Mode != update.Mode {
		out.Mode = update.Mode
		changed = true
	}
	f64(&out.BuyPercent, update.BuyPercent)
	f64(&out.SellPercent, update.SellPercent)
	f64(&out.StopLossPercent, update.StopLossPercent)
	i(&out.PriceCheckInterval, update.PriceCheckInterval)
	str(&out.CandleInterval, update.CandleInterval)
	i(&out.CandleCount, update.CandleCount)
	i(&out.VolumeWindow, update.VolumeWindow)
	f64(&out.VolumePercent, update.VolumePercent)
	i(&out.MooningTankingTime, update.MooningTankingTime)
	f64(&out.StartingAmount, update.StartingAmount)
	i(&out.ResetInterval, update.ResetInterval)
	i(&out.CeilingFloorInterval, update.CeilingFloorInterval)
	f64(&out.PricePadding, update.PricePadding)
	i32(&out.QuantityPrecision, update.QuantityPrecision)
	i32(&out.PricePrecision, update.PricePrecision)
	b(&out.StopLossFirst, update.StopLossFirst)
	b(&out.ConfirmTrend, update.ConfirmTrend)

	return out, changed
}

// Validate checks the fields the run loop cannot work without.
func (s Settings) Validate() error {
	var missing []string
	if s.Symbol == "" {
		missing = append(missing, "symbol")
	}
	if s.Asset == "" {
		missing = append(missing, "asset")
	}
	if s.Quote == "" {
		missing = append(missing, "quote")
	}
	if s.CandleInterval == "" {
		missing = append(missing, "candle_interval")
	}
	if len(missing) > 0 {
		return fmt.Errorf("settings missing required fields: %s", strings.Join(missing, ", "))
	}
	switch s.Strategy {
	case StrategyPercentage, StrategyVolume, StrategyBollinger, StrategyOrderBook:
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	switch s.Mode {
	case ModeLive, ModePaper:
	default:
		return fmt.Errorf("unknown trading mode %q", s.Mode)
	}
	if s.Mode == ModePaper && s.StartingAmount <= 0 {
		return fmt.Errorf("paper mode requires a positive starting_amount")
	}
	return nil
}

// Policy is the small switch set that distinguishes strategy variants.
type Policy struct {
	// StopLossFirst runs the stop-out check before trend confirmation.
	StopLossFirst bool
	// ConfirmTrend enables the mooning/tanking look-ahead.
	ConfirmTrend bool
}

// Policy resolves the policy switches, treating unset as true.
func (s Settings) Policy() Policy {
	return Policy{
		StopLossFirst: s.StopLossFirst == nil || *s.StopLossFirst,
		ConfirmTrend:  s.ConfirmTrend == nil || *s.ConfirmTrend,
	}
}

// CheckInterval is the pause at the top of every cycle.
func (s Settings) CheckInterval() time.Duration {
	return time.Duration(s.PriceCheckInterval) * time.Second
}

// LookAheadDelay is the pause between look-ahead samples.
func (s Settings) LookAheadDelay() time.Duration {
	return time.Duration(s.MooningTankingTime) * time.Second
}

// IsPaper reports whether orders go to the simulator.
func (s Settings) IsPaper() bool {
	return s.Mode == ModePaper
}
