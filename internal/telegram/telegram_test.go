package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad sendMessage body: %v", err)
			}
			f.mu.Lock()
			f.sent = append(f.sent, body)
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if r.URL.Query().Get("offset") != "7" {
				t.Errorf("Expected offset 7, got %s", r.URL.Query().Get("offset"))
			}
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"message":{"text":"/status","chat":{"id":42}}},
				{"update_id":8,"message":{"text":"/stop","chat":{"id":99},"from":{"username":"mallory"}}},
				{"update_id":9,"message":{"text":"hello","chat":{"id":42}}}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestNotify_PostsToChat(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", "42")
	c.Notify("✅ BUY")

	if len(api.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(api.sent))
	}
	if api.sent[0]["chat_id"] != "42" || api.sent[0]["text"] != "✅ BUY" {
		t.Errorf("Unexpected payload %v", api.sent[0])
	}
}

func TestNotify_NoCredentials(t *testing.T) {
	// Must not panic or send anything.
	NewClient("http://127.0.0.1:0", "", "").Notify("ignored")
	var nilClient *Client
	nilClient.Notify("ignored")
}

func TestDispatch_OnlyAuthorizedCommands(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()
	c := NewClient(srv.URL, "TOKEN", "42")

	updates, err := c.getUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("getUpdates failed: %v", err)
	}

	var handled []string
	next := c.dispatch(updates, 42, 7, func(cmd string) string {
		handled = append(handled, cmd)
		return "ok: " + cmd
	})

	if next != 10 {
		t.Errorf("Expected next offset 10, got %d", next)
	}
	if len(handled) != 1 || handled[0] != "/status" {
		t.Errorf("Expected only /status handled, got %v", handled)
	}
	if len(api.sent) != 1 || api.sent[0]["text"] != "ok: /status" {
		t.Errorf("Expected one reply, got %v", api.sent)
	}
}
