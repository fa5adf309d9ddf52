package market

// PriceHandler receives every trade print of a subscribed symbol.
type PriceHandler func(symbol string, price float64)

// PriceObserver is implemented by adapters that settle orders on observed prices,
// like the paper simulator.
type PriceObserver interface {
	Observe(price float64)
}
