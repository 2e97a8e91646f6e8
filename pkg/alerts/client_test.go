package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFoldTokenName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"BONK", "bonk"},
		{"  Bonk  ", "bonk"},
		{"Bónk", "bonk"},
		{"PÉPE", "pepe"},
		{"7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", "7gcihgdb8fe6knjn2mytkzzcrjqy3t9ghdc8uhymw2hr"},
	}
	for _, c := range cases {
		if got := foldTokenName(c.in); got != c.want {
			t.Errorf("foldTokenName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

type subscribeMsg struct {
	Op           string `json:"op"`
	TokenAddress string `json:"token_address"`
}

// newAlertServer upgrades one connection, records subscribe frames, and
// pushes a canned alert after the first subscription.
func newAlertServer(t *testing.T, alert *Alert, gotSub chan subscribeMsg, gotKey chan string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case gotKey <- r.Header.Get("X-API-Key"):
		default:
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var msg subscribeMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			gotSub <- msg

			if msg.Op == "subscribe" && alert != nil {
				if err := conn.WriteJSON(alert); err != nil {
					return
				}
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnectSubscribesWatchedTokens(t *testing.T) {
	gotSub := make(chan subscribeMsg, 4)
	gotKey := make(chan string, 1)
	pushed := &Alert{
		Type:           AlertRugDetected,
		TokenAddress:   "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
		RiskScore:      97,
		Recommendation: "AVOID",
	}
	server := newAlertServer(t, pushed, gotSub, gotKey)
	defer server.Close()

	alerts := make(chan *Alert, 1)

	config := DefaultConfig(wsURL(server))
	config.APIKey = "test-key"
	config.ReconnectEnabled = false

	client := NewClient(config, Handlers{
		OnAlert: func(a *Alert) { alerts <- a },
	})
	defer client.Close()

	// Watch before connecting; the subscription must be sent on connect.
	if err := client.Watch(pushed.TokenAddress); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.State() != StateConnected {
		t.Errorf("expected connected state, got %s", client.State())
	}

	select {
	case key := <-gotKey:
		if key != "test-key" {
			t.Errorf("expected X-API-Key test-key, got %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the handshake")
	}

	select {
	case sub := <-gotSub:
		if sub.Op != "subscribe" || sub.TokenAddress != pushed.TokenAddress {
			t.Errorf("wrong subscribe frame: %+v", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe frame never arrived")
	}

	select {
	case a := <-alerts:
		if a.Type != AlertRugDetected || a.RiskScore != 97 {
			t.Errorf("wrong alert: %+v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert never delivered")
	}
}

func TestWatchedMatchesHomoglyphs(t *testing.T) {
	client := NewClient(DefaultConfig("ws://unused"), Handlers{})
	defer client.Close()

	if err := client.Watch("Bonk"); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !client.Watched("BONK") {
		t.Error("case variant not matched")
	}
	if !client.Watched("Bónk") {
		t.Error("accented variant not matched")
	}
	if client.Watched("Wif") {
		t.Error("unrelated token matched")
	}

	if err := client.Unwatch("BONK"); err != nil {
		t.Fatalf("Unwatch failed: %v", err)
	}
	if client.Watched("Bonk") {
		t.Error("token still watched after Unwatch")
	}
}

func TestWatchRequiresAddress(t *testing.T) {
	client := NewClient(DefaultConfig("ws://unused"), Handlers{})
	defer client.Close()

	if err := client.Watch(""); err == nil {
		t.Error("expected error for empty token address")
	}
}

func TestHeartbeatFramesAreSkipped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Heartbeat first, then a real alert.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"ok": true}`))
		conn.WriteJSON(&Alert{Type: AlertPriceDrop, TokenAddress: "0xabc"})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	alerts := make(chan *Alert, 2)

	config := DefaultConfig(wsURL(server))
	config.ReconnectEnabled = false

	client := NewClient(config, Handlers{
		OnAlert: func(a *Alert) { alerts <- a },
	})
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case a := <-alerts:
		if a.Type != AlertPriceDrop {
			t.Errorf("expected the price_drop alert, got %+v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert never delivered")
	}

	select {
	case a := <-alerts:
		t.Errorf("heartbeat frame delivered as alert: %+v", a)
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client := NewClient(DefaultConfig("ws://unused"), Handlers{})
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected closed state, got %s", client.State())
	}
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect after Close must fail")
	}
}

func TestAlertJSONShape(t *testing.T) {
	raw := `{"type": "risk_change", "token_address": "0xabc", "risk_score": 55, "recommendation": "CAUTION", "timestamp": 1755900000}`

	var a Alert
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if a.Type != AlertRiskChange || a.RiskScore != 55 || a.Timestamp != 1755900000 {
		t.Errorf("wrong alert: %+v", a)
	}
}
