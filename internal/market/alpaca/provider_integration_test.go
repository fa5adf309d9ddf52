//go:build integration

package alpaca

import (
	"os"
	"testing"
	"time"

	"spot_trader/internal/models"

	"github.com/shopspring/decimal"
)

func setupTestEnv(t *testing.T) {
	key := os.Getenv("TEST_APCA_API_KEY_ID")
	secret := os.Getenv("TEST_APCA_API_SECRET_KEY")
	url := os.Getenv("TEST_APCA_API_BASE_URL")

	if key == "" || secret == "" {
		t.Skip("Skipping integration test: TEST_APCA credentials not set")
	}

	// Override standard env vars for the library
	os.Setenv("APCA_API_KEY_ID", key)
	os.Setenv("APCA_API_SECRET_KEY", secret)
	if url != "" {
		os.Setenv("APCA_API_BASE_URL", url)
	} else {
		os.Setenv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets")
	}
}

func TestIntegration_Candles(t *testing.T) {
	setupTestEnv(t)
	provider := NewProvider()

	candles, err := provider.GetCandlesticks("BTC/USD", "1m", 30)
	if err != nil {
		t.Fatalf("GetCandlesticks failed: %v", err)
	}
	if len(candles) == 0 || len(candles) > 30 {
		t.Fatalf("Expected 1..30 candles, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime.Before(candles[i-1].OpenTime) {
			t.Fatalf("candles not ordered oldest first at %d", i)
		}
	}
}

func TestIntegration_LimitOrderCancel(t *testing.T) {
	setupTestEnv(t)
	provider := NewProvider()

	support, err := provider.GetSupport("BTC/USD")
	if err != nil {
		t.Fatalf("GetSupport failed: %v", err)
	}
	if support <= 0 {
		t.Skip("order book empty, nothing to test against")
	}

	// Far below the market so it rests.
	price := decimal.NewFromFloat(support * 0.5).Round(2)
	order, err := provider.PlaceOrder(models.OrderRequest{
		Symbol: "BTC/USD",
		Side:   models.SideBuy,
		Type:   models.OrderTypeLimit,
		Price:  price,
		Qty:    decimal.NewFromFloat(0.001),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	t.Logf("Placed Order %s", order.ID)

	time.Sleep(1 * time.Second)
	canceled, err := provider.CancelOrder(*order)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if canceled.Status == models.OrderStatusFilled {
		t.Errorf("resting order unexpectedly filled")
	}
}
