package paper

import (
	"errors"
	"testing"
	"time"

	"spot_trader/internal/clock"
	"spot_trader/internal/market"
	"spot_trader/internal/models"

	"github.com/shopspring/decimal"
)

// feed serves a fixed close as market data.
type feed struct {
	close float64
}

func (f *feed) GetCandlesticks(symbol, interval string, count int) ([]models.Candle, error) {
	return []models.Candle{{Close: f.close, CloseTime: time.Now()}}, nil
}
func (f *feed) GetBalances(asset, quote string) ([]models.Balance, error) {
	return nil, errors.New("feed has no account")
}
func (f *feed) PlaceOrder(models.OrderRequest) (*models.Order, error) {
	return nil, errors.New("feed cannot trade")
}
func (f *feed) CancelOrder(models.Order) (*models.Order, error) {
	return nil, errors.New("feed cannot trade")
}
func (f *feed) GetOrderStatus(models.Order) (*models.Order, error) {
	return nil, errors.New("feed cannot trade")
}
func (f *feed) GetSupport(string) (float64, error)    { return 99, nil }
func (f *feed) GetResistance(string) (float64, error) { return 101, nil }

func newSim(start int64) (*Simulator, *feed) {
	f := &feed{close: 100}
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(f, clk, "BTC", "USDT", decimal.NewFromInt(start)), f
}

func free(t *testing.T, s *Simulator, asset string) decimal.Decimal {
	t.Helper()
	bals, err := s.GetBalances("BTC", "USDT")
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	return models.BalanceSnapshot{Balances: bals}.Free(asset)
}

func TestPaperBuy_FillsImmediately(t *testing.T) {
	s, _ := newSim(1000)

	order, err := s.PlaceOrder(models.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   models.SideBuy,
		Type:   models.OrderTypeLimit,
		Price:  decimal.NewFromInt(100),
		Qty:    decimal.RequireFromString("2.5"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.OrderStatusFilled {
		t.Errorf("Expected FILLED, got %s", order.Status)
	}
	if !order.ExecutedQty.Equal(order.Qty) {
		t.Errorf("Expected executed qty %s, got %s", order.Qty, order.ExecutedQty)
	}

	status, err := s.GetOrderStatus(*order)
	if err != nil || status.Status != models.OrderStatusFilled {
		t.Errorf("Expected status FILLED on poll, got %+v (%v)", status, err)
	}

	if !free(t, s, "USDT").Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected 750 USDT left, got %s", free(t, s, "USDT"))
	}
	if !free(t, s, "BTC").Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected 2.5 BTC, got %s", free(t, s, "BTC"))
	}
}

func TestPaperBuy_InsufficientFunds(t *testing.T) {
	s, _ := newSim(10)
	_, err := s.PlaceOrder(models.OrderRequest{
		Side:  models.SideBuy,
		Type:  models.OrderTypeLimit,
		Price: decimal.NewFromInt(100),
		Qty:   decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
}

func TestPaperSell_RoundTrip(t *testing.T) {
	s, _ := newSim(1000)
	buy := models.OrderRequest{Side: models.SideBuy, Type: models.OrderTypeLimit, Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(5)}
	if _, err := s.PlaceOrder(buy); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	sell := models.OrderRequest{Side: models.SideSell, Type: models.OrderTypeLimit, Price: decimal.NewFromInt(110), Qty: decimal.NewFromInt(5)}
	if _, err := s.PlaceOrder(sell); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if !free(t, s, "USDT").Equal(decimal.NewFromInt(1050)) {
		t.Errorf("Expected 1050 USDT, got %s", free(t, s, "USDT"))
	}
	if !free(t, s, "BTC").IsZero() {
		t.Errorf("Expected no BTC left, got %s", free(t, s, "BTC"))
	}
}

func TestPaperStop_FillsWhenCrossed(t *testing.T) {
	s, f := newSim(1000)
	s.PlaceOrder(models.OrderRequest{Side: models.SideBuy, Type: models.OrderTypeLimit, Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2)})

	stop, err := s.PlaceOrder(models.OrderRequest{
		Side:      models.SideSell,
		Type:      models.OrderTypeStop,
		StopPrice: decimal.NewFromInt(98),
		Qty:       decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if stop.Status != models.OrderStatusNew {
		t.Fatalf("Expected stop to rest, got %s", stop.Status)
	}
	if !free(t, s, "BTC").IsZero() {
		t.Errorf("Expected BTC locked by the stop, free is %s", free(t, s, "BTC"))
	}

	// Price above the trigger leaves the stop resting.
	f.close = 99
	s.GetCandlesticks("BTCUSDT", "1m", 1)
	if st, _ := s.GetOrderStatus(*stop); st.Status != models.OrderStatusNew {
		t.Errorf("Expected stop still NEW at 99, got %s", st.Status)
	}

	f.close = 97.5
	s.GetCandlesticks("BTCUSDT", "1m", 1)
	st, _ := s.GetOrderStatus(*stop)
	if st.Status != models.OrderStatusFilled {
		t.Fatalf("Expected stop FILLED at 97.5, got %s", st.Status)
	}
	if !st.AvgFillPrice.Equal(decimal.NewFromInt(98)) {
		t.Errorf("Expected fill at the stop price, got %s", st.AvgFillPrice)
	}
	if !free(t, s, "USDT").Equal(decimal.NewFromInt(996)) {
		t.Errorf("Expected 996 USDT after stop-out, got %s", free(t, s, "USDT"))
	}
}

func TestPaperCancel_ReleasesLock(t *testing.T) {
	s, _ := newSim(1000)
	s.PlaceOrder(models.OrderRequest{Side: models.SideBuy, Type: models.OrderTypeLimit, Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1)})
	stop, _ := s.PlaceOrder(models.OrderRequest{Side: models.SideSell, Type: models.OrderTypeStop, StopPrice: decimal.NewFromInt(90), Qty: decimal.NewFromInt(1)})

	canceled, err := s.CancelOrder(*stop)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if canceled.Status != models.OrderStatusCanceled {
		t.Errorf("Expected CANCELED, got %s", canceled.Status)
	}
	if !free(t, s, "BTC").Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected lock released, free BTC %s", free(t, s, "BTC"))
	}

	if _, err := s.CancelOrder(models.Order{ID: "missing"}); !errors.Is(err, market.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}
