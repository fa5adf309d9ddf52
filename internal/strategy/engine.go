package strategy

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"spot_trader/internal/clock"
	"spot_trader/internal/market"
	"spot_trader/internal/models"
	"spot_trader/internal/trade"
)

// ErrStopped is returned when a stop request interrupts a cycle.
var ErrStopped = errors.New("engine stopped")

const (
	fetchBackoff    = time.Second
	maxFetchBackoff = 30 * time.Second
)

// SettingsHook is called at a checkpoint after new settings were applied.
type SettingsHook func(old, applied models.Settings)

// Engine drives one strategy for one trading pair.
type Engine struct {
	clock   clock.Clock
	orders  *trade.Orchestrator
	onApply SettingsHook

	mu       sync.Mutex
	provider market.MarketProvider
	settings models.Settings
	pending  *models.Settings
	strategy Strategy
	cursor   models.Cursor
	cycle    int

	running atomic.Bool
	stop    atomic.Bool
}

// NewEngine builds an engine for settings. The orchestrator must use the same provider.
func NewEngine(provider market.MarketProvider, orders *trade.Orchestrator, clk clock.Clock, settings models.Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	st, err := NewStrategy(settings.Strategy)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	orders.SetSettings(settings)
	return &Engine{
		clock:    clk,
		orders:   orders,
		provider: provider,
		settings: settings,
		strategy: st,
	}, nil
}

// OnSettingsApplied registers a hook run after every checkpoint that changed settings.
func (e *Engine) OnSettingsApplied(h SettingsHook) {
	e.mu.Lock()
	e.onApply = h
	e.mu.Unlock()
}

// SetProvider swaps the market adapter. Meant to be called from a SettingsHook.
// On error the engine keeps trading on the previous adapter.
func (e *Engine) SetProvider(p market.MarketProvider) error {
	if err := e.orders.SetProvider(p); err != nil {
		return err
	}
	e.mu.Lock()
	e.provider = p
	e.mu.Unlock()
	return nil
}

// SetSettings merges the non-zero fields of update into the pending settings.
// Pending settings take effect at the next checkpoint. It reports whether anything changed.
func (e *Engine) SetSettings(update models.Settings) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.settings
	if e.pending != nil {
		base = *e.pending
	}
	merged, changed := base.Merge(update)
	if !changed {
		return false, nil
	}
	if err := merged.Validate(); err != nil {
		return false, err
	}
	e.pending = &merged
	return true, nil
}

// Settings returns the settings in effect.
func (e *Engine) Settings() models.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// PendingSettings returns settings waiting for the next checkpoint, if any.
func (e *Engine) PendingSettings() (models.Settings, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return models.Settings{}, false
	}
	return *e.pending, true
}

// Cursor returns a copy of the strategy cursor.
func (e *Engine) Cursor() models.Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Running reports whether Start is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Start runs cycles until Stop is called. It blocks. A Stop issued before Start
// is honored; call Resume first to start again after a stop.
// interval <= 0 uses the PriceCheckInterval of the settings in effect.
func (e *Engine) Start(interval time.Duration) {
	if !e.running.CompareAndSwap(false, true) {
		log.Println("Warning: engine already running")
		return
	}
	defer e.running.Store(false)

	if err := e.applyPending(); err != nil {
		log.Printf("ERROR: [Start] %v", err)
	}
	s := e.Settings()
	log.Printf("Engine started: %s %s on %s (%s)", s.Strategy, s.Symbol, s.Exchange, s.Mode)

	for {
		d := interval
		if d <= 0 {
			d = e.Settings().CheckInterval()
		}
		e.clock.Sleep(d)

		if e.stop.Load() {
			log.Println("Engine stopped")
			return
		}
		if err := e.RunOnce(); err != nil && !errors.Is(err, ErrStopped) {
			log.Printf("ERROR: [RunOnce] %v", err)
		}
	}
}

// Stop asks the loop to exit. The flag is checked once per cycle.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Resume clears a previous Stop so the next Start keeps looping.
func (e *Engine) Resume() {
	e.stop.Store(false)
}

// RunOnce executes a single cycle: checkpoint, fetch, stop-out check, decide, act.
func (e *Engine) RunOnce() error {
	e.mu.Lock()
	n := e.cycle
	e.cycle++
	e.mu.Unlock()

	s := e.Settings()
	if n > 0 && s.ResetInterval > 0 && n%s.ResetInterval == 0 {
		if err := e.applyPending(); err != nil {
			log.Printf("ERROR: [Checkpoint] %v", err)
		}
		s = e.Settings()
	}

	e.mu.Lock()
	st := e.strategy
	provider := e.provider
	e.mu.Unlock()

	count := s.CandleCount
	if need := st.MinCandles(s); count < need {
		count = need
	}
	candles, err := e.fetchCandles(s, count)
	if err != nil {
		return err
	}

	policy := s.Policy()
	last := candles[len(candles)-1].Close

	if policy.StopLossFirst {
		e.checkStopOut(s, last)
	}

	c := &Cycle{
		Settings: s,
		Policy:   policy,
		Cursor:   e.Cursor(),
		Candles:  candles,
		Number:   n,
		Market:   provider,
		Orders:   e.orders,
		engine:   e,
	}
	in := st.Decide(c)

	if in.Action == models.ActionHold {
		if !policy.StopLossFirst {
			e.checkStopOut(s, last)
		}
		return nil
	}

	e.orders.RecordSignal(models.TradeSignal{
		Pair:     s.Symbol,
		Strategy: string(s.Strategy),
		Action:   in.Action,
		Signal:   in.Signal,
		Reason:   in.Reason,
		Price:    in.Price,
		Time:     e.clock.Now(),
	})
	e.act(in)
	return nil
}

// act executes intent and advances the cursor only on a validated trade.
func (e *Engine) act(in models.TradeIntent) {
	side, _ := in.Side()
	cur := e.Cursor()
	if side != cur.CurrentSide() {
		log.Printf("Warning: [Act] %s intent ignored on %s side", side, cur.CurrentSide())
		return
	}

	var canceled []models.OpenStopLoss
	if side == models.SideSell {
		canceled = e.orders.OpenStopLosses()
		if !e.orders.CancelStopLoss() {
			log.Printf("Warning: [Act] SELL aborted, open stop-loss could not be canceled")
			return
		}
	}

	rec, ok := e.orders.Execute(in, cur.TradeNumber+1)
	if !ok {
		// The position is still held; protect it again.
		if len(canceled) > 0 {
			if err := e.orders.PlaceStopLoss(cur.LastBuyPrice, canceled[0].Qty); err != nil {
				log.Printf("ERROR: [PlaceStopLoss] re-arm after failed SELL: %v", err)
			}
		}
		return
	}
	fill, _ := rec.Price.Float64()

	e.mu.Lock()
	if side == models.SideBuy {
		e.cursor.LastBuyPrice = fill
	} else {
		e.cursor.LastSellPrice = fill
	}
	e.cursor.LastTradeType = side
	e.cursor.LastReason = in.Reason
	e.cursor.TradeNumber++
	e.mu.Unlock()

	if side == models.SideBuy {
		if err := e.orders.PlaceStopLoss(fill, rec.Qty); err != nil {
			log.Printf("ERROR: [PlaceStopLoss] %v", err)
		}
	}
}

// checkStopOut moves the cursor back to the BUY side when the oldest stop-loss executed.
func (e *Engine) checkStopOut(s models.Settings, price float64) {
	sold := e.orders.StoppedOutCheck(price)
	if sold <= 0 {
		return
	}

	e.mu.Lock()
	e.cursor.LastSellPrice = sold
	e.cursor.LastTradeType = models.SideSell
	e.cursor.LastReason = models.ReasonStopLoss
	e.cursor.TradeNumber++
	e.mu.Unlock()

	e.orders.RecordSignal(models.TradeSignal{
		Pair:     s.Symbol,
		Strategy: string(s.Strategy),
		Action:   models.ActionSell,
		Signal:   models.SignalStopLoss,
		Reason:   models.ReasonStopLoss,
		Price:    sold,
		Time:     e.clock.Now(),
	})
	log.Printf("Stopped out at %f, back on BUY side", sold)
}

// applyPending swaps in buffered settings. A symbol or strategy change resets the cursor.
func (e *Engine) applyPending() error {
	e.mu.Lock()
	if e.pending == nil {
		e.mu.Unlock()
		return nil
	}
	old, next := e.settings, *e.pending
	e.pending = nil

	if next.Strategy != old.Strategy {
		st, err := NewStrategy(next.Strategy)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.strategy = st
	}
	if next.Symbol != old.Symbol || next.Strategy != old.Strategy {
		e.cursor = models.Cursor{}
		e.strategy.Reset()
	}
	e.settings = next
	hook := e.onApply
	e.mu.Unlock()

	e.orders.SetSettings(next)
	log.Printf("Settings applied (strategy=%s symbol=%s mode=%s)", next.Strategy, next.Symbol, next.Mode)
	if hook != nil {
		hook(old, next)
	}
	return nil
}

// fetchCandles retries until a non-empty candle set arrives or the engine is stopped.
func (e *Engine) fetchCandles(s models.Settings, count int) ([]models.Candle, error) {
	backoff := fetchBackoff
	for attempt := 1; ; attempt++ {
		candles, err := e.fetchOnce(s, count)
		if err == nil {
			return candles, nil
		}
		log.Printf("Warning: [GetCandlesticks] attempt %d for %s: %v", attempt, s.Symbol, err)
		if e.stop.Load() {
			return nil, ErrStopped
		}
		e.clock.Sleep(backoff)
		if backoff *= 2; backoff > maxFetchBackoff {
			backoff = maxFetchBackoff
		}
	}
}

func (e *Engine) fetchOnce(s models.Settings, count int) ([]models.Candle, error) {
	e.mu.Lock()
	provider := e.provider
	e.mu.Unlock()

	candles, err := provider.GetCandlesticks(s.Symbol, s.CandleInterval, count)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, market.ErrNoCandles
	}
	return candles, nil
}

// lookAhead samples the next candle every MooningTankingTime while the price keeps
// moving in the direction of side and the threshold still holds. The move is
// confirmed once either stops, or at the iteration cap. Only a stop request or a
// failed sample leaves it unconfirmed.
func (e *Engine) lookAhead(c *Cycle, side models.Side, reached func(float64) bool) (float64, bool) {
	latest := c.Latest().Close
	for i := 0; i < maxLookAhead; i++ {
		if e.stop.Load() {
			return latest, false
		}
		e.clock.Sleep(c.Settings.LookAheadDelay())

		candles, err := e.fetchOnce(c.Settings, len(c.Candles))
		if err != nil {
			log.Printf("Warning: [LookAhead] %v", err)
			return latest, false
		}
		previous := latest
		latest = candles[len(candles)-1].Close

		if !reached(latest) {
			return latest, true
		}
		moving := latest < previous
		if side == models.SideSell {
			moving = latest > previous
		}
		if !moving {
			return latest, true
		}
	}
	return latest, true
}

func (e *Engine) String() string {
	s := e.Settings()
	return fmt.Sprintf("%s/%s/%s", s.Exchange, s.Symbol, s.Strategy)
}
