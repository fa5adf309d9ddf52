package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"spot_trader/internal/models"
)

// Source is the read-only view of a running bot.
type Source interface {
	RecentTrades(n int) []models.TradeRecord
	BalanceHistory(n int) []models.BalanceSnapshot
	OpenStopLosses() []models.OpenStopLoss
	RecentSignals(n int) []models.TradeSignal
	Settings() models.Settings
}

const defaultLimit = 50

// Server serves history endpoints and the websocket stream.
type Server struct {
	src Source
	hub *Hub
}

func NewServer(src Source, hub *Hub) *Server {
	return &Server{src: src, hub: hub}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trades", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.src.RecentTrades(limitParam(r)))
	})
	mux.HandleFunc("/api/balances", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.src.BalanceHistory(limitParam(r)))
	})
	mux.HandleFunc("/api/stoplosses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.src.OpenStopLosses())
	})
	mux.HandleFunc("/api/signals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.src.RecentSignals(limitParam(r)))
	})
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.src.Settings())
	})
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}
	return mux
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Telemetry Server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// limitParam reads ?n=, defaulting to 50. n=0 returns everything kept in memory.
func limitParam(r *http.Request) int {
	v := r.URL.Query().Get("n")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: [Telemetry] encode: %v", err)
	}
}
