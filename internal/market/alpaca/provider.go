package alpaca

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spot_trader/internal/market"
	"spot_trader/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Provider implements market.MarketProvider for Alpaca crypto trading.
type Provider struct {
	mdClient    *marketdata.Client
	tradeClient *alpaca.Client
}

// Ensure Provider implements the interface
var _ market.MarketProvider = (*Provider)(nil)

// NewProvider returns a new Alpaca provider.
// Credentials are read by the SDK from APCA_API_KEY_ID / APCA_API_SECRET_KEY / APCA_API_BASE_URL.
func NewProvider() *Provider {
	return &Provider{
		mdClient:    marketdata.NewClient(marketdata.ClientOpts{}),
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{}),
	}
}

// --- Market Data ---

func (p *Provider) GetCandlesticks(symbol, interval string, count int) ([]models.Candle, error) {
	tf, step, err := parseTimeFrame(interval)
	if err != nil {
		return nil, err
	}

	// Ask for a little more history than needed; crypto bars can have gaps.
	start := time.Now().Add(-step * time.Duration(count+5))
	bars, err := p.mdClient.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     start,
	})
	if err != nil {
		return nil, fmt.Errorf("get crypto bars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, market.ErrNoCandles
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	result := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		result = append(result, mapBar(b, step))
	}
	return result, nil
}

func (p *Provider) GetSupport(symbol string) (float64, error) {
	book, err := p.orderBook(symbol)
	if err != nil {
		return 0, err
	}
	support, _ := market.SupportResistance(book)
	return support, nil
}

func (p *Provider) GetResistance(symbol string) (float64, error) {
	book, err := p.orderBook(symbol)
	if err != nil {
		return 0, err
	}
	_, resistance := market.SupportResistance(book)
	return resistance, nil
}

func (p *Provider) orderBook(symbol string) (models.OrderBook, error) {
	ob, err := p.mdClient.GetLatestCryptoOrderbook(symbol, marketdata.GetLatestCryptoOrderbookRequest{})
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("get orderbook %s: %w", symbol, err)
	}
	book := models.OrderBook{Symbol: symbol}
	if ob == nil {
		return book, nil
	}
	for _, b := range ob.Bids {
		book.Bids = append(book.Bids, models.OrderBookLevel{Price: b.Price, Size: b.Size})
	}
	for _, a := range ob.Asks {
		book.Asks = append(book.Asks, models.OrderBookLevel{Price: a.Price, Size: a.Size})
	}
	return book, nil
}

// --- Account ---

// GetBalances maps account cash to the quote asset and the crypto position to the base asset.
func (p *Provider) GetBalances(asset, quote string) ([]models.Balance, error) {
	acct, err := p.tradeClient.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	base := models.Balance{Asset: asset}
	pos, err := p.tradeClient.GetPosition(asset + quote)
	if err != nil {
		var apiErr *alpaca.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			return nil, fmt.Errorf("get position %s%s: %w", asset, quote, err)
		}
		// No position means a zero base balance.
	} else if pos != nil {
		base.Free = pos.QtyAvailable
		base.Locked = pos.Qty.Sub(pos.QtyAvailable)
	}

	return []models.Balance{
		base,
		{Asset: quote, Free: acct.Cash},
	}, nil
}

// --- Execution ---

func (p *Provider) PlaceOrder(r models.OrderRequest) (*models.Order, error) {
	qty := r.Qty
	req := alpaca.PlaceOrderRequest{
		Symbol:        r.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(strings.ToLower(string(r.Side))),
		TimeInForce:   alpaca.GTC,
		ClientOrderID: r.ClientOrderID,
	}
	if r.TimeInForce == models.IOC {
		req.TimeInForce = alpaca.IOC
	}

	switch r.Type {
	case models.OrderTypeStop:
		// Alpaca crypto has no plain stop order; a stop-limit at the trigger price behaves the same.
		stop := r.StopPrice
		limit := r.StopPrice
		req.Type = alpaca.StopLimit
		req.StopPrice = &stop
		req.LimitPrice = &limit
	default:
		limit := r.Price
		req.Type = alpaca.Limit
		req.LimitPrice = &limit
	}

	o, err := p.tradeClient.PlaceOrder(req)
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (p *Provider) CancelOrder(order models.Order) (*models.Order, error) {
	if err := p.tradeClient.CancelOrder(order.ID); err != nil {
		return nil, err
	}
	return p.GetOrderStatus(order)
}

func (p *Provider) GetOrderStatus(order models.Order) (*models.Order, error) {
	o, err := p.tradeClient.GetOrder(order.ID)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, market.ErrOrderNotFound
		}
		return nil, err
	}
	return mapOrder(o), nil
}

// Helpers

func parseTimeFrame(interval string) (marketdata.TimeFrame, time.Duration, error) {
	if len(interval) < 2 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q", interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return marketdata.NewTimeFrame(n, marketdata.Min), time.Duration(n) * time.Minute, nil
	case 'h':
		return marketdata.NewTimeFrame(n, marketdata.Hour), time.Duration(n) * time.Hour, nil
	case 'd':
		return marketdata.NewTimeFrame(n, marketdata.Day), time.Duration(n) * 24 * time.Hour, nil
	}
	return marketdata.TimeFrame{}, 0, fmt.Errorf("unsupported interval %q", interval)
}

func mapBar(b marketdata.CryptoBar, step time.Duration) models.Candle {
	return models.Candle{
		OpenTime:  b.Timestamp,
		CloseTime: b.Timestamp.Add(step - time.Millisecond),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

func mapStatus(s string) models.OrderStatus {
	switch strings.ToLower(s) {
	case "filled":
		return models.OrderStatusFilled
	case "partially_filled":
		return models.OrderStatusPartiallyFilled
	case "canceled", "done_for_day", "replaced":
		return models.OrderStatusCanceled
	case "expired":
		return models.OrderStatusExpired
	case "rejected", "suspended", "stopped":
		return models.OrderStatusRejected
	}
	// new, accepted, pending_new, pending_cancel, ...
	return models.OrderStatusNew
}

func mapOrder(o *alpaca.Order) *models.Order {
	if o == nil {
		return nil
	}

	res := &models.Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          models.Side(strings.ToUpper(string(o.Side))),
		Type:          models.OrderTypeLimit,
		ExecutedQty:   o.FilledQty,
		TimeInForce:   models.GTC,
		Status:        mapStatus(o.Status),
		CreatedAt:     o.CreatedAt,
	}
	if o.Type == alpaca.Stop || o.Type == alpaca.StopLimit {
		res.Type = models.OrderTypeStop
	}
	if o.TimeInForce == alpaca.IOC {
		res.TimeInForce = models.IOC
	}
	if o.Qty != nil {
		res.Qty = *o.Qty
	}
	if o.LimitPrice != nil {
		res.Price = *o.LimitPrice
	}
	if o.StopPrice != nil {
		res.StopPrice = *o.StopPrice
	}
	if o.FilledAvgPrice != nil {
		res.AvgFillPrice = *o.FilledAvgPrice
	} else {
		res.AvgFillPrice = decimal.Zero
	}
	return res
}
