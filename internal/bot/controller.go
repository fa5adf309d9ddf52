// Package bot wires one strategy engine to its market adapter, logs and operator surfaces.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"spot_trader/internal/clock"
	"spot_trader/internal/market"
	"spot_trader/internal/models"
	"spot_trader/internal/storage"
	"spot_trader/internal/strategy"
	"spot_trader/internal/trade"
)

// ErrNotConfigured is returned when no settings file exists yet.
var ErrNotConfigured = errors.New("bot not configured: run `spot_trader settings init` first")

// ProviderFactory builds the market adapter the settings ask for.
type ProviderFactory func(s models.Settings) (market.MarketProvider, error)

// Deps are the collaborators of a Controller. Recorder and Notifier may be nil.
type Deps struct {
	Store     *storage.SettingsStore
	Providers ProviderFactory
	Recorder  trade.Recorder
	Notifier  trade.Notifier
	Clock     clock.Clock
}

// Controller owns the engine lifecycle and the operator facing surface.
type Controller struct {
	store     *storage.SettingsStore
	providers ProviderFactory
	notifier  trade.Notifier
	clock     clock.Clock
	engine    *strategy.Engine
	orders    *trade.Orchestrator
	startedAt time.Time

	mu sync.Mutex
	// current market adapter and the settings it was built for
	adapter    market.MarketProvider
	adapterFor models.Settings
	done       chan struct{} // closed when the engine loop exits
}

// New loads the settings file and builds the engine for it.
func New(d Deps) (*Controller, error) {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	settings, err := d.Store.Load()
	if errors.Is(err, storage.ErrSettingsMissing) {
		return nil, fmt.Errorf("%w (%s)", ErrNotConfigured, d.Store.Path())
	}
	if err != nil {
		return nil, err
	}

	provider, err := d.Providers(settings)
	if err != nil {
		return nil, fmt.Errorf("market provider: %w", err)
	}
	orders := trade.New(provider, d.Clock, d.Recorder, d.Notifier)
	engine, err := strategy.NewEngine(provider, orders, d.Clock, settings)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		store:     d.Store,
		providers: d.Providers,
		notifier:  d.Notifier,
		clock:     d.Clock,
		engine:    engine,
		orders:    orders,
		startedAt: d.Clock.Now(),

		adapter:    provider,
		adapterFor: settings,
	}
	engine.OnSettingsApplied(c.onSettingsApplied)
	return c, nil
}

// needsNewProvider reports whether applied settings point at a different adapter.
func needsNewProvider(old, applied models.Settings) bool {
	return old.Mode != applied.Mode ||
		old.Exchange != applied.Exchange ||
		old.Symbol != applied.Symbol ||
		old.Asset != applied.Asset ||
		old.Quote != applied.Quote
}

// onSettingsApplied swaps the market adapter when mode, exchange or pair changed.
// A failed build or a stop-loss that cannot be canceled keeps the previous
// adapter, and the swap is retried after the next settings change.
func (c *Controller) onSettingsApplied(_, applied models.Settings) {
	c.mu.Lock()
	prev := c.adapterFor
	c.mu.Unlock()
	if !needsNewProvider(prev, applied) {
		return
	}
	p, err := c.providers(applied)
	if err != nil {
		log.Printf("ERROR: [SwapProvider] keeping %s %s adapter: %v", prev.Exchange, prev.Mode, err)
		return
	}
	if err := c.engine.SetProvider(p); err != nil {
		log.Printf("ERROR: [SwapProvider] keeping %s %s adapter: %v", prev.Exchange, prev.Mode, err)
		c.notify(fmt.Sprintf("⚠️ Still trading on %s (%s): %v", prev.Exchange, prev.Mode, err))
		return
	}
	c.mu.Lock()
	c.adapter, c.adapterFor = p, applied
	c.mu.Unlock()
	log.Printf("Market adapter switched to %s %s for %s", applied.Exchange, applied.Mode, applied.Symbol)
	c.notify(fmt.Sprintf("🔁 Now trading %s on %s (%s)", applied.Symbol, applied.Exchange, applied.Mode))
}

// ObservePrice takes a streamed trade print for the traded symbol. It feeds the
// stop-out check and lets a paper adapter fill stops on intra-candle prices.
func (c *Controller) ObservePrice(symbol string, price float64) {
	if price <= 0 || symbol != c.Settings().Symbol {
		return
	}
	c.orders.ObservePrice(price)

	c.mu.Lock()
	p := c.adapter
	c.mu.Unlock()
	if obs, ok := p.(market.PriceObserver); ok {
		obs.Observe(price)
	}
}

// Run starts the engine, hot-reloads the settings file if watch is set and blocks until ctx is done.
func (c *Controller) Run(ctx context.Context, watch bool, debounce time.Duration) error {
	if watch {
		if err := c.WatchSettings(ctx, debounce); err != nil {
			log.Printf("Warning: settings file watch disabled: %v", err)
		}
	}
	c.Start()
	<-ctx.Done()
	c.Stop()
	c.Wait()
	return nil
}

// Start launches the engine loop in the background. It returns false if a loop is
// still running or still stopping.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return false
		}
	}
	c.engine.Resume()
	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		c.engine.Start(0)
	}()
	return true
}

// Stop asks the engine to exit after its current cycle.
func (c *Controller) Stop() {
	c.engine.Stop()
}

// Wait blocks until the engine loop has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether the engine loop is active.
func (c *Controller) Running() bool {
	return c.engine.Running()
}

// SetSettings merges the non-zero fields of update into the settings file and
// queues them for the next checkpoint. It reports whether anything changed.
func (c *Controller) SetSettings(update models.Settings) (bool, error) {
	current, err := c.store.Load()
	if err != nil {
		return false, err
	}
	merged, changed := current.Merge(update)
	if !changed {
		return false, nil
	}
	if err := merged.Validate(); err != nil {
		return false, err
	}
	if err := c.store.Save(merged); err != nil {
		return false, err
	}
	return c.engine.SetSettings(merged)
}

// ReloadSettings queues the settings file contents for the next checkpoint.
func (c *Controller) ReloadSettings() (bool, error) {
	st, err := c.store.Load()
	if err != nil {
		return false, err
	}
	return c.engine.SetSettings(st)
}

// Settings returns the settings in effect.
func (c *Controller) Settings() models.Settings {
	return c.engine.Settings()
}

func (c *Controller) RecentTrades(n int) []models.TradeRecord {
	return c.orders.RecentTrades(n)
}

func (c *Controller) BalanceHistory(n int) []models.BalanceSnapshot {
	return c.orders.BalanceHistory(n)
}

func (c *Controller) OpenStopLosses() []models.OpenStopLoss {
	return c.orders.OpenStopLosses()
}

func (c *Controller) RecentSignals(n int) []models.TradeSignal {
	return c.orders.RecentSignals(n)
}

func (c *Controller) notify(msg string) {
	if c.notifier != nil {
		c.notifier.Notify(msg)
	}
}
