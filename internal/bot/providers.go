package bot

import (
	"fmt"

	"spot_trader/internal/clock"
	"spot_trader/internal/config"
	"spot_trader/internal/market"
	"spot_trader/internal/market/alpaca"
	"spot_trader/internal/market/binance"
	"spot_trader/internal/market/paper"
	"spot_trader/internal/models"

	"github.com/shopspring/decimal"
)

// NewProviderFactory returns the factory used in production. The settings pick the
// exchange (falling back to TRADER_EXCHANGE) and mode. Paper mode wraps the live
// market data of the exchange with the simulator.
func NewProviderFactory(cfg *config.Config, clk clock.Clock) ProviderFactory {
	return func(s models.Settings) (market.MarketProvider, error) {
		c := *cfg
		if s.Exchange != "" {
			c.Exchange = s.Exchange
		}
		if err := c.Validate(s.Mode); err != nil {
			return nil, err
		}

		var live market.MarketProvider
		switch c.Exchange {
		case config.ExchangeAlpaca:
			live = alpaca.NewProvider()
		case config.ExchangeBinance:
			live = binance.NewProvider(c.BinanceBaseURL, c.BinanceAPIKey, c.BinanceAPISecret)
		default:
			return nil, fmt.Errorf("unsupported exchange %q", c.Exchange)
		}

		if s.IsPaper() {
			return paper.New(live, clk, s.Asset, s.Quote, decimal.NewFromFloat(s.StartingAmount)), nil
		}
		return live, nil
	}
}
