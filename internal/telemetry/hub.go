// Package telemetry exposes trading history over HTTP and streams live events over websocket.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"spot_trader/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// Event is one websocket frame.
type Event struct {
	Type string      `json:"type"` // trade, balances, signal
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// Hub fans events out to every connected websocket client.
// It implements trade.Recorder so it can sit next to the sqlite store.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	lock      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
	}
}

// Run writes queued events to clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case message := <-h.broadcast:
			h.lock.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.lock.Unlock()
		}
	}
}

// Broadcast queues msg. A full queue drops the message so the trading loop never blocks.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Warning: [Telemetry] broadcast queue full, event dropped")
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: [Telemetry] WS upgrade: %v", err)
		return
	}
	h.lock.Lock()
	h.clients[conn] = true
	h.lock.Unlock()

	// Drain reads so close frames are processed; drop the client on error.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.lock.Lock()
				if h.clients[conn] {
					conn.Close()
					delete(h.clients, conn)
				}
				h.lock.Unlock()
				return
			}
		}
	}()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) publish(kind string, at time.Time, data interface{}) error {
	msg, err := json.Marshal(Event{Type: kind, Time: at, Data: data})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

func (h *Hub) RecordTrade(t models.TradeRecord) error {
	return h.publish("trade", t.Time, t)
}

func (h *Hub) RecordBalances(s models.BalanceSnapshot) error {
	return h.publish("balances", s.Time, s)
}

func (h *Hub) RecordSignal(s models.TradeSignal) error {
	return h.publish("signal", s.Time, s)
}
