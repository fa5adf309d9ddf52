package bot

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"spot_trader/internal/models"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

var commandDocs = []CommandDoc{
	{"/status", "Engine state, cursor and open stop-losses", "/status"},
	{"/trades", "Latest completed trades", "/trades 10"},
	{"/balances", "Latest balance snapshots", "/balances 3"},
	{"/stoplosses", "Open stop-loss orders", "/stoplosses"},
	{"/signals", "Latest non-HOLD signals", "/signals 10"},
	{"/set", "Change a setting, applied at the next checkpoint", "/set buy_percent 1.5"},
	{"/stop", "Stop the engine after the current cycle", "/stop"},
	{"/start", "Start the engine", "/start"},
	{"/help", "This list", "/help"},
}

// HandleCommand processes one inbound operator command and returns the reply.
func (c *Controller) HandleCommand(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}

	switch strings.ToLower(parts[0]) {
	case "/ping":
		return "Pong 🏓"
	case "/status":
		return c.getStatus()
	case "/trades":
		return c.getTrades(countArg(parts, 5))
	case "/balances":
		return c.getBalances(countArg(parts, 1))
	case "/stoplosses":
		return c.getStopLosses()
	case "/signals":
		return c.getSignals(countArg(parts, 5))
	case "/set":
		return c.handleSetCommand(parts)
	case "/stop":
		return c.handleStopCommand()
	case "/start":
		return c.handleStartCommand()
	case "/help":
		return getHelp()
	default:
		return "Unknown command. Try /status, /trades, /set, /stop, /start or /help."
	}
}

func countArg(parts []string, fallback int) int {
	if len(parts) < 2 {
		return fallback
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (c *Controller) getStatus() string {
	s := c.Settings()
	cur := c.engine.Cursor()

	state := "🛑 STOPPED"
	if c.Running() {
		state = "🟢 RUNNING"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s* %s\n", state, s.Symbol))
	sb.WriteString(fmt.Sprintf("Strategy: %s | %s on %s\n", s.Strategy, s.Mode, s.Exchange))
	sb.WriteString(fmt.Sprintf("Next side: %s | Trades: %d\n", cur.CurrentSide(), cur.TradeNumber))
	if cur.LastTradeType != "" {
		sb.WriteString(fmt.Sprintf("Last: %s (%s) buy %.8g / sell %.8g\n",
			cur.LastTradeType, cur.LastReason, cur.LastBuyPrice, cur.LastSellPrice))
	}
	sb.WriteString(fmt.Sprintf("Open stop-losses: %d\n", len(c.OpenStopLosses())))
	if _, ok := c.engine.PendingSettings(); ok {
		sb.WriteString("⏳ Settings change pending the next checkpoint\n")
	}
	sb.WriteString(fmt.Sprintf("Uptime: %s", c.clock.Now().Sub(c.startedAt).Truncate(time.Second)))
	return sb.String()
}

func (c *Controller) getTrades(n int) string {
	trades := c.RecentTrades(n)
	if len(trades) == 0 {
		return "No trades yet."
	}
	var sb strings.Builder
	sb.WriteString("📒 *TRADES*\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("#%d %s %s %s @ %s (%s) %s\n",
			t.TradeNum, t.Side, t.Qty, t.Pair, t.Price, t.Reason, t.Time.Format("01-02 15:04")))
	}
	return sb.String()
}

func (c *Controller) getBalances(n int) string {
	snaps := c.BalanceHistory(n)
	if len(snaps) == 0 {
		return "No balance snapshots yet."
	}
	var sb strings.Builder
	sb.WriteString("💰 *BALANCES*\n")
	for _, snap := range snaps {
		sb.WriteString(snap.Time.Format("01-02 15:04:05"))
		for _, b := range snap.Balances {
			sb.WriteString(fmt.Sprintf(" | %s %s", b.Asset, b.Free))
			if b.Locked.IsPositive() {
				sb.WriteString(fmt.Sprintf(" (+%s locked)", b.Locked))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *Controller) getStopLosses() string {
	stops := c.OpenStopLosses()
	if len(stops) == 0 {
		return "No open stop-losses."
	}
	var sb strings.Builder
	sb.WriteString("🛡️ *STOP-LOSSES*\n")
	for _, s := range stops {
		sb.WriteString(fmt.Sprintf("• %s %s @ %s (order %s)\n", s.Symbol, s.Qty, s.Trigger, s.OrderID))
	}
	return sb.String()
}

func (c *Controller) getSignals(n int) string {
	sigs := c.RecentSignals(n)
	if len(sigs) == 0 {
		return "No signals yet."
	}
	var sb strings.Builder
	sb.WriteString("📡 *SIGNALS*\n")
	for _, s := range sigs {
		sb.WriteString(fmt.Sprintf("• %s %s %s/%s @ %.8g\n",
			s.Time.Format("01-02 15:04"), s.Action, s.Signal, s.Reason, s.Price))
	}
	return sb.String()
}

func (c *Controller) handleSetCommand(parts []string) string {
	if len(parts) != 3 {
		return "Usage: /set <key> <value>\nKeys: " + strings.Join(SettingKeys(), ", ")
	}
	update, err := ParseSetting(parts[1], parts[2])
	if err != nil {
		return fmt.Sprintf("⚠️ %v", err)
	}
	changed, err := c.SetSettings(update)
	if err != nil {
		return fmt.Sprintf("⚠️ Settings rejected: %v", err)
	}
	if !changed {
		return "No change. Zero values are ignored."
	}
	return fmt.Sprintf("✅ %s=%s saved, applied at the next checkpoint.", parts[1], parts[2])
}

func (c *Controller) handleStopCommand() string {
	if !c.Running() {
		return "Engine is not running."
	}
	c.Stop()
	return "🛑 Engine stopping after the current cycle."
}

func (c *Controller) handleStartCommand() string {
	if c.Running() {
		return "Engine is already running."
	}
	if !c.Start() {
		return "⏳ Engine is still stopping, try again shortly."
	}
	return "✅ Engine started."
}

func getHelp() string {
	var sb strings.Builder
	sb.WriteString("🤖 *COMMANDS*\n")
	for _, d := range commandDocs {
		sb.WriteString(fmt.Sprintf("%s: %s\n  e.g. `%s`\n", d.Name, d.Description, d.Example))
	}
	return sb.String()
}

// settingKeys holds the json names of Settings, built once from the struct tags.
var settingKeys = func() []string {
	t := reflect.TypeOf(models.Settings{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" || name == "version" {
			continue
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}()

// SettingKeys lists the settings keys an operator may change.
func SettingKeys() []string {
	return append([]string(nil), settingKeys...)
}

// ParseSetting turns key=value into a partial Settings update. Numbers and
// booleans are taken as JSON literals, everything else as a string.
func ParseSetting(key, value string) (models.Settings, error) {
	key = strings.ToLower(key)
	known := false
	for _, k := range settingKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return models.Settings{}, fmt.Errorf("unknown setting %q", key)
	}

	literal := value
	if !json.Valid([]byte(value)) {
		literal = strconv.Quote(value)
	}
	var update models.Settings
	if err := json.Unmarshal([]byte(fmt.Sprintf(`{%q:%s}`, key, literal)), &update); err != nil {
		return models.Settings{}, fmt.Errorf("invalid value %q for %s", value, key)
	}
	return update, nil
}
