package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spot_trader/internal/market"
	"spot_trader/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the Binance spot REST endpoint.
const DefaultBaseURL = "https://api.binance.com"

const recvWindow = "5000"

// Provider implements market.MarketProvider against the Binance spot REST API.
type Provider struct {
	client    *resty.Client
	apiSecret string
	now       func() time.Time
}

var _ market.MarketProvider = (*Provider)(nil)

// NewProvider creates a Binance provider. baseURL may be empty for production.
func NewProvider(baseURL, apiKey, apiSecret string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("X-MBX-APIKEY", apiKey)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	return &Provider{
		client:    client,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// --- Market Data ---

func (p *Provider) GetCandlesticks(symbol, interval string, count int) ([]models.Candle, error) {
	resp, err := p.client.R().
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(count),
		}).
		Get("/api/v3/klines")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse klines response: %w", err)
	}
	if len(rows) == 0 {
		return nil, market.ErrNoCandles
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := mapKline(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
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

type depthResponse struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

func (p *Provider) orderBook(symbol string) (models.OrderBook, error) {
	var depth depthResponse
	resp, err := p.client.R().
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"limit":  strconv.Itoa(market.DepthLevels),
		}).
		SetResult(&depth).
		Get("/api/v3/depth")
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("failed to fetch depth for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return models.OrderBook{}, apiError(resp)
	}

	book := models.OrderBook{Symbol: symbol}
	book.Bids = mapLevels(depth.Bids)
	book.Asks = mapLevels(depth.Asks)
	return book, nil
}

// --- Account ---

type accountResponse struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

func (p *Provider) GetBalances(asset, quote string) ([]models.Balance, error) {
	var acct accountResponse
	resp, err := p.client.R().
		SetQueryString(p.sign(url.Values{})).
		SetResult(&acct).
		Get("/api/v3/account")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	out := []models.Balance{{Asset: asset}, {Asset: quote}}
	for _, b := range acct.Balances {
		for i := range out {
			if out[i].Asset == b.Asset {
				out[i].Free = b.Free
				out[i].Locked = b.Locked
			}
		}
	}
	return out, nil
}

// --- Execution ---

type orderResponse struct {
	Symbol              string          `json:"symbol"`
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Price               decimal.Decimal `json:"price"`
	StopPrice           decimal.Decimal `json:"stopPrice"`
	OrigQty             decimal.Decimal `json:"origQty"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Status              string          `json:"status"`
	TimeInForce         string          `json:"timeInForce"`
	Type                string          `json:"type"`
	Side                string          `json:"side"`
	Time                int64           `json:"time"`
	TransactTime        int64           `json:"transactTime"`
}

func (p *Provider) PlaceOrder(r models.OrderRequest) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", r.Symbol)
	params.Set("side", string(r.Side))
	params.Set("quantity", r.Qty.String())
	tif := r.TimeInForce
	if tif == "" {
		tif = models.GTC
	}
	params.Set("timeInForce", string(tif))
	if r.ClientOrderID != "" {
		params.Set("newClientOrderId", r.ClientOrderID)
	}

	switch r.Type {
	case models.OrderTypeStop:
		params.Set("type", "STOP_LOSS_LIMIT")
		params.Set("stopPrice", r.StopPrice.String())
		params.Set("price", r.StopPrice.String())
	default:
		params.Set("type", "LIMIT")
		params.Set("price", r.Price.String())
	}

	return p.orderCall(http.MethodPost, params)
}

func (p *Provider) CancelOrder(order models.Order) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("orderId", order.ID)
	return p.orderCall(http.MethodDelete, params)
}

func (p *Provider) GetOrderStatus(order models.Order) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("orderId", order.ID)
	return p.orderCall(http.MethodGet, params)
}

func (p *Provider) orderCall(method string, params url.Values) (*models.Order, error) {
	var out orderResponse
	resp, err := p.client.R().
		SetQueryString(p.sign(params)).
		SetResult(&out).
		Execute(method, "/api/v3/order")
	if err != nil {
		return nil, fmt.Errorf("order %s failed: %w", strings.ToLower(method), err)
	}
	if resp.IsError() {
		if strings.Contains(resp.String(), "-2013") {
			return nil, market.ErrOrderNotFound
		}
		return nil, apiError(resp)
	}
	return mapOrder(out), nil
}

// sign appends timestamp, recvWindow and the HMAC-SHA256 signature of the encoded query.
func (p *Provider) sign(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(p.now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	qs := params.Encode()
	mac := hmac.New(sha256.New, []byte(p.apiSecret))
	mac.Write([]byte(qs))
	return qs + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// Helpers

func apiError(resp *resty.Response) error {
	return fmt.Errorf("binance API error %d: %s", resp.StatusCode(), resp.String())
}

func mapKline(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 7 {
		return models.Candle{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	var openTime, closeTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return models.Candle{}, fmt.Errorf("kline open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeTime); err != nil {
		return models.Candle{}, fmt.Errorf("kline close time: %w", err)
	}

	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		vals[i] = f
	}

	return models.Candle{
		OpenTime:  time.UnixMilli(openTime).UTC(),
		CloseTime: time.UnixMilli(closeTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func mapLevels(raw [][2]string) []models.OrderBookLevel {
	out := make([]models.OrderBookLevel, 0, len(raw))
	for _, l := range raw {
		price, err1 := strconv.ParseFloat(l[0], 64)
		size, err2 := strconv.ParseFloat(l[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, models.OrderBookLevel{Price: price, Size: size})
	}
	return out
}

func mapStatus(s string) models.OrderStatus {
	switch s {
	case "FILLED":
		return models.OrderStatusFilled
	case "PARTIALLY_FILLED":
		return models.OrderStatusPartiallyFilled
	case "CANCELED", "PENDING_CANCEL":
		return models.OrderStatusCanceled
	case "REJECTED":
		return models.OrderStatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return models.OrderStatusExpired
	}
	return models.OrderStatusNew
}

func mapOrder(o orderResponse) *models.Order {
	res := &models.Order{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          models.Side(o.Side),
		Type:          models.OrderTypeLimit,
		Price:         o.Price,
		StopPrice:     o.StopPrice,
		Qty:           o.OrigQty,
		ExecutedQty:   o.ExecutedQty,
		TimeInForce:   models.TimeInForce(o.TimeInForce),
		Status:        mapStatus(o.Status),
	}
	if strings.HasPrefix(o.Type, "STOP") {
		res.Type = models.OrderTypeStop
	}
	if o.ExecutedQty.IsPositive() && o.CummulativeQuoteQty.IsPositive() {
		res.AvgFillPrice = o.CummulativeQuoteQty.Div(o.ExecutedQty)
	}
	ts := o.Time
	if ts == 0 {
		ts = o.TransactTime
	}
	if ts > 0 {
		res.CreatedAt = time.UnixMilli(ts).UTC()
	}
	return res
}
