package models

import "time"

// Candle is one OHLCV interval bucket. Adapters produce it; nothing mutates it afterwards.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BollingerCandle is a Candle with its band and the volume change versus the previous candle.
type BollingerCandle struct {
	Candle
	MovingAverage float64 `json:"moving_average"`
	UpperBand     float64 `json:"upper_band"`
	LowerBand     float64 `json:"lower_band"`
	VolumeDelta   float64 `json:"volume_delta"`
	VolumePercent float64 `json:"volume_percent"`
}

// OrderBookLevel is a single price level of depth.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a depth snapshot. Bids are sorted high to low, asks low to high.
type OrderBook struct {
	Symbol string           `json:"symbol"`
	Bids   []OrderBookLevel `json:"bids"`
	Asks   []OrderBookLevel `json:"asks"`
}
