package indicators

import (
	"math"
	"testing"
	"time"

	"spot_trader/internal/models"

	"github.com/markcheno/go-talib"
)

func makeCandles(closes []float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Minute),
			CloseTime: base.Add(time.Duration(i+1)*time.Minute - time.Millisecond),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    float64(10 + i%7),
		}
	}
	return out
}

func TestBollingerBands_OrderingAndLength(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3)
	}
	candles := makeCandles(closes)

	bands := BollingerBands(candles, BollingerPeriod, BollingerFactor)
	if len(bands) != len(candles)-BollingerPeriod+1 {
		t.Fatalf("Expected %d banded candles, got %d", len(candles)-BollingerPeriod+1, len(bands))
	}

	for i, b := range bands {
		if !(b.LowerBand <= b.MovingAverage && b.MovingAverage <= b.UpperBand) {
			t.Errorf("band %d out of order: lower %f avg %f upper %f", i, b.LowerBand, b.MovingAverage, b.UpperBand)
		}
	}

	// First emitted band belongs to candle period-1.
	if !bands[0].CloseTime.Equal(candles[BollingerPeriod-1].CloseTime) {
		t.Errorf("Expected first band at candle %d", BollingerPeriod-1)
	}
}

func TestBollingerBands_MatchesTalib(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 50 + float64(i%11)*1.7 - float64(i%5)*0.9
	}
	candles := makeCandles(closes)

	bands := BollingerBands(candles, BollingerPeriod, BollingerFactor)
	upper, middle, lower := talib.BBands(closes, BollingerPeriod, BollingerFactor, BollingerFactor, talib.SMA)

	for i, b := range bands {
		idx := i + BollingerPeriod - 1
		if math.Abs(b.MovingAverage-middle[idx]) > 1e-6 {
			t.Errorf("avg mismatch at %d: got %f, talib %f", idx, b.MovingAverage, middle[idx])
		}
		if math.Abs(b.UpperBand-upper[idx]) > 1e-6 {
			t.Errorf("upper mismatch at %d: got %f, talib %f", idx, b.UpperBand, upper[idx])
		}
		if math.Abs(b.LowerBand-lower[idx]) > 1e-6 {
			t.Errorf("lower mismatch at %d: got %f, talib %f", idx, b.LowerBand, lower[idx])
		}
	}
}

func TestBollingerBands_FlatWindow(t *testing.T) {
	closes := make([]float64, BollingerPeriod)
	for i := range closes {
		closes[i] = 0.1
	}
	bands := BollingerBands(makeCandles(closes), BollingerPeriod, BollingerFactor)
	if len(bands) != 1 {
		t.Fatalf("Expected 1 band, got %d", len(bands))
	}
	b := bands[0]
	if math.IsNaN(b.UpperBand) || math.IsNaN(b.LowerBand) {
		t.Fatal("flat window produced NaN band")
	}
	if b.LowerBand > b.MovingAverage || b.MovingAverage > b.UpperBand {
		t.Errorf("flat band out of order: %+v", b)
	}
}

func TestBollingerBands_VolumeDelta(t *testing.T) {
	candles := makeCandles(make([]float64, 22))
	for i := range candles {
		candles[i].Close = 100
		candles[i].Volume = 10
	}
	candles[21].Volume = 25

	bands := BollingerBands(candles, BollingerPeriod, BollingerFactor)
	if len(bands) != 2 {
		t.Fatalf("Expected 2 bands, got %d", len(bands))
	}
	last := bands[1]
	if last.VolumeDelta != 15 {
		t.Errorf("Expected volume delta 15, got %f", last.VolumeDelta)
	}
	if math.Abs(last.VolumePercent-150) > 1e-9 {
		t.Errorf("Expected volume percent 150, got %f", last.VolumePercent)
	}
}

func TestBollingerBands_TooShort(t *testing.T) {
	if bands := BollingerBands(makeCandles([]float64{1, 2, 3}), BollingerPeriod, BollingerFactor); bands != nil {
		t.Errorf("Expected nil for short input, got %d bands", len(bands))
	}
}

func TestPercentChange_ZeroReference(t *testing.T) {
	if _, ok := PercentChange(100, 0); ok {
		t.Error("zero reference must not produce a change")
	}
	if RiseReached(100, 0, 1) {
		t.Error("RiseReached with zero reference must be false")
	}
	if DropReached(0, 0, 1) {
		t.Error("DropReached with zero reference must be false")
	}
}

func TestThresholds_InclusiveBoundary(t *testing.T) {
	tests := []struct {
		name      string
		reached   func(price, reference, pct float64) bool
		price     float64
		reference float64
		pct       float64
		want      bool
	}{
		{"rise exactly 1%", RiseReached, 101, 100, 1, true},
		{"rise exactly 0.5%", RiseReached, 100.5, 100, 0.5, true},
		{"rise exactly 0.3%", RiseReached, 100.3, 100, 0.3, true},
		{"rise exactly 0.1% on a small price", RiseReached, 0.0010001, 0.001, 0.01, true},
		{"rise just short", RiseReached, 100.29999, 100, 0.3, false},
		{"rise half way", RiseReached, 100.5, 100, 1, false},
		{"drop exactly 1%", DropReached, 99, 100, 1, true},
		{"drop exactly 0.5%", DropReached, 99.5, 100, 0.5, true},
		{"drop exactly 0.3%", DropReached, 99.7, 100, 0.3, true},
		{"drop just short", DropReached, 99.70001, 100, 0.3, false},
		{"drop past threshold", DropReached, 98, 100, 1, true},
		{"negative drop threshold is its magnitude", DropReached, 98, 100, -1, true},
		{"zero threshold at equality", RiseReached, 0.00001, 0.00001, 0, true},
		{"zero drop threshold at equality", DropReached, 0.00001, 0.00001, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reached(tt.price, tt.reference, tt.pct); got != tt.want {
				t.Errorf("Expected %v for %v against %v at %v%%, got %v", tt.want, tt.price, tt.reference, tt.pct, got)
			}
		})
	}
}

func TestVolumeMomentum(t *testing.T) {
	if got := VolumeMomentum(0, 25); got != 0 {
		t.Errorf("Expected 0 for zero previous volume, got %f", got)
	}
	if got := VolumeMomentum(10, 25); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("Expected 1.5, got %f", got)
	}
}
