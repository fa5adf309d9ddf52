package alpaca

import (
	"context"
	"log"
	"time"

	"spot_trader/internal/market"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

const (
	streamBackoff    = time.Second
	maxStreamBackoff = time.Minute
)

// TradeStream follows crypto trade prints on Alpaca's market data websocket.
// The SDK reconnects on its own; once it gives up, Run dials a fresh client.
type TradeStream struct {
	keyID     string
	secretKey string
	symbols   []string
	handler   market.PriceHandler
}

// NewTradeStream returns a stream for symbols (e.g. BTC/USD). Nothing connects until Run.
func NewTradeStream(keyID, secretKey string, symbols []string, handler market.PriceHandler) *TradeStream {
	return &TradeStream{
		keyID:     keyID,
		secretKey: secretKey,
		symbols:   symbols,
		handler:   handler,
	}
}

func (s *TradeStream) newClient() *stream.CryptoClient {
	return stream.NewCryptoClient(
		marketdata.US,
		stream.WithCredentials(s.keyID, s.secretKey),
		stream.WithReconnectSettings(10, 500*time.Millisecond),
		stream.WithCryptoTrades(s.onTrade, s.symbols...),
	)
}

func (s *TradeStream) onTrade(t stream.CryptoTrade) {
	if t.Price <= 0 {
		return
	}
	s.handler(t.Symbol, t.Price)
}

// Run connects and keeps the stream alive until ctx is done.
func (s *TradeStream) Run(ctx context.Context) {
	backoff := streamBackoff
	for {
		log.Printf("🔌 Connecting to Alpaca crypto stream %v...", s.symbols)
		client := s.newClient()
		err := client.Connect(ctx)
		if err == nil {
			backoff = streamBackoff
			select {
			case <-ctx.Done():
				log.Println("Alpaca stream closed")
				return
			case err = <-client.Terminated():
			}
		}
		if ctx.Err() != nil {
			return
		}

		log.Printf("ERROR: [TradeStream] %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxStreamBackoff {
			backoff = maxStreamBackoff
		}
	}
}
