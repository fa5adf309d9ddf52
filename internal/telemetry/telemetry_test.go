package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spot_trader/internal/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type stubSource struct {
	trades []models.TradeRecord
	lastN  int
}

func (s *stubSource) RecentTrades(n int) []models.TradeRecord {
	s.lastN = n
	return s.trades
}
func (s *stubSource) BalanceHistory(n int) []models.BalanceSnapshot { return nil }
func (s *stubSource) OpenStopLosses() []models.OpenStopLoss {
	return []models.OpenStopLoss{{Symbol: "BTCUSDT", Trigger: decimal.NewFromInt(98)}}
}
func (s *stubSource) RecentSignals(n int) []models.TradeSignal { return nil }
func (s *stubSource) Settings() models.Settings                { return models.DefaultSettings() }

func TestHistoryEndpoints(t *testing.T) {
	src := &stubSource{trades: []models.TradeRecord{{Pair: "BTCUSDT", Side: models.SideBuy, TradeNum: 1}}}
	srv := httptest.NewServer(NewServer(src, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trades?n=5")
	if err != nil {
		t.Fatalf("GET trades: %v", err)
	}
	var trades []models.TradeRecord
	json.NewDecoder(resp.Body).Decode(&trades)
	resp.Body.Close()

	if src.lastN != 5 {
		t.Errorf("Expected n=5 passed through, got %d", src.lastN)
	}
	if len(trades) != 1 || trades[0].Side != models.SideBuy {
		t.Errorf("Unexpected trades %+v", trades)
	}

	resp, _ = http.Get(srv.URL + "/api/trades?n=bogus")
	resp.Body.Close()
	if src.lastN != defaultLimit {
		t.Errorf("Expected default limit on bad n, got %d", src.lastN)
	}

	resp, _ = http.Get(srv.URL + "/api/stoplosses")
	var stops []models.OpenStopLoss
	json.NewDecoder(resp.Body).Decode(&stops)
	resp.Body.Close()
	if len(stops) != 1 || !stops[0].Trigger.Equal(decimal.NewFromInt(98)) {
		t.Errorf("Unexpected stop-losses %+v", stops)
	}

	resp, _ = http.Get(srv.URL + "/api/settings")
	var st models.Settings
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Symbol != "BTCUSDT" {
		t.Errorf("Unexpected settings %+v", st)
	}
}

func TestHub_BroadcastsRecordedEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer(&stubSource{}, hub).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sig := models.TradeSignal{Pair: "BTCUSDT", Action: models.ActionBuy, Reason: models.ReasonBuy, Price: 100}
	if err := hub.RecordSignal(sig); err != nil {
		t.Fatalf("RecordSignal: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev struct {
		Type string             `json:"type"`
		Data models.TradeSignal `json:"data"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Type != "signal" || ev.Data.Price != 100 {
		t.Errorf("Unexpected event %s %+v", ev.Type, ev.Data)
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub() // Run not started
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast([]byte("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
}
