package market

import (
	"errors"

	"spot_trader/internal/models"
)

var (
	// ErrNoCandles is returned when an adapter got an empty candle set.
	ErrNoCandles = errors.New("no candles returned")
	// ErrOrderNotFound is returned when the broker does not know the order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyBook is returned when the order book has no levels on the requested side.
	ErrEmptyBook = errors.New("order book side is empty")
)

// MarketProvider is the boundary to an exchange.
// Each adapter translates its own wire shapes into the canonical models, so the
// engine never sees an exchange specific payload. The paper simulator implements
// the same interface.
type MarketProvider interface {
	// GetCandlesticks returns the latest count candles, oldest first.
	GetCandlesticks(symbol, interval string, count int) ([]models.Candle, error)
	// GetBalances returns the balances of the base asset and the quote asset.
	GetBalances(asset, quote string) ([]models.Balance, error)

	PlaceOrder(req models.OrderRequest) (*models.Order, error)
	CancelOrder(order models.Order) (*models.Order, error)
	GetOrderStatus(order models.Order) (*models.Order, error)

	// GetSupport and GetResistance return the strongest bid/ask level price.
	// A price of zero means the book side evaporated.
	GetSupport(symbol string) (float64, error)
	GetResistance(symbol string) (float64, error)
}

// DepthLevels is how many levels of the book are considered for support/resistance.
const DepthLevels = 20

// SupportResistance returns the bid level and the ask level with the largest size
// within the top DepthLevels. Ties go to the level closest to the spread.
func SupportResistance(book models.OrderBook) (support, resistance float64) {
	return strongest(book.Bids), strongest(book.Asks)
}

func strongest(levels []models.OrderBookLevel) float64 {
	if len(levels) > DepthLevels {
		levels = levels[:DepthLevels]
	}
	var best models.OrderBookLevel
	for _, l := range levels {
		if l.Size > best.Size {
			best = l
		}
	}
	return best.Price
}
