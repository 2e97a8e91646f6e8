// Package alerts provides a WebSocket client for the Rug Munch live alert
// stream, with automatic reconnection and per-token subscriptions. It is an
// alternative to webhook delivery for hosts that want push alerts.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Alert types pushed by the service.
const (
	AlertRiskChange  = "risk_change"
	AlertRugDetected = "rug_detected"
	AlertPriceDrop   = "price_drop"
)

// Alert is one event from the stream.
type Alert struct {
	Type           string `json:"type"`
	TokenAddress   string `json:"token_address"`
	TokenName      string `json:"token_name,omitempty"`
	Chain          string `json:"chain,omitempty"`
	RiskScore      int    `json:"risk_score,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Message        string `json:"message,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// State represents the connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handlers contains callback functions for stream events.
type Handlers struct {
	OnAlert      func(*Alert)
	OnConnect    func()
	OnDisconnect func(err error)
	OnError      func(err error)
}

// Config holds alert stream configuration.
type Config struct {
	// URL is the WebSocket endpoint of the alert stream.
	URL string

	// APIKey authenticates the connection, if set.
	APIKey string

	ReconnectEnabled     bool
	ReconnectMinDelay    time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int // 0 = unlimited

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectEnabled:  true,
		ReconnectMinDelay: 1 * time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
	}
}

// Client is an alert stream client with reconnection support. Watched
// tokens are re-subscribed after every reconnect.
type Client struct {
	config   Config
	handlers Handlers

	conn   *websocket.Conn
	connMu sync.Mutex
	state  int32 // atomic State

	closeCh   chan struct{}
	closeOnce sync.Once

	watched map[string]string // folded key -> original token address
	watchMu sync.RWMutex

	reconnectAttempts int
}

// NewClient creates a new alert stream client.
func NewClient(config Config, handlers Handlers) *Client {
	return &Client{
		config:   config,
		handlers: handlers,
		closeCh:  make(chan struct{}),
		watched:  make(map[string]string),
	}
}

// Connect establishes the stream connection and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.getState() == StateClosed {
		return errors.New("client is closed")
	}

	c.setState(StateConnecting)

	headers := map[string][]string{}
	if c.config.APIKey != "" {
		headers["X-API-Key"] = []string{c.config.APIKey}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, headers)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	c.reconnectAttempts = 0

	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}

	if err := c.resubscribe(); err != nil {
		log.Printf("[ALERTS] Resubscribe failed: %v", err)
	}

	go c.readLoop()
	if c.config.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// Close closes the stream.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.closeCh)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.getState()
}

// Watch subscribes to alerts for a token address.
func (c *Client) Watch(tokenAddress string) error {
	if tokenAddress == "" {
		return errors.New("token address is required")
	}

	c.watchMu.Lock()
	c.watched[foldTokenName(tokenAddress)] = tokenAddress
	c.watchMu.Unlock()

	if c.getState() != StateConnected {
		return nil // subscribed on next connect
	}
	return c.writeJSON(map[string]string{"op": "subscribe", "token_address": tokenAddress})
}

// Unwatch removes a token subscription.
func (c *Client) Unwatch(tokenAddress string) error {
	c.watchMu.Lock()
	delete(c.watched, foldTokenName(tokenAddress))
	c.watchMu.Unlock()

	if c.getState() != StateConnected {
		return nil
	}
	return c.writeJSON(map[string]string{"op": "unsubscribe", "token_address": tokenAddress})
}

// Watched reports whether alerts for the token are subscribed. Matching is
// tolerant of homoglyph and accent tricks in token names.
func (c *Client) Watched(tokenOrName string) bool {
	c.watchMu.RLock()
	defer c.watchMu.RUnlock()
	_, ok := c.watched[foldTokenName(tokenOrName)]
	return ok
}

// --- Internal ---

func (c *Client) getState() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Client) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

func (c *Client) resubscribe() error {
	c.watchMu.RLock()
	tokens := make([]string, 0, len(c.watched))
	for _, t := range c.watched {
		tokens = append(tokens, t)
	}
	c.watchMu.RUnlock()

	for _, t := range tokens {
		if err := c.writeJSON(map[string]string{"op": "subscribe", "token_address": t}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) writeJSON(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errors.New("not connected")
	}
	if c.config.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.getState() == StateClosed {
				return
			}
			if c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
			c.handleDisconnect(err)
			return
		}

		var alert Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			log.Printf("[ALERTS] Bad alert payload: %v", err)
			continue
		}
		if alert.Type == "" {
			continue // heartbeat or ack frame
		}

		if c.handlers.OnAlert != nil {
			c.handlers.OnAlert(&alert)
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

func (c *Client) handleDisconnect(err error) {
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}

	if !c.config.ReconnectEnabled || c.getState() == StateClosed {
		c.setState(StateDisconnected)
		return
	}

	c.setState(StateReconnecting)

	delay := c.config.ReconnectMinDelay
	for {
		select {
		case <-c.closeCh:
			return
		case <-time.After(delay):
		}

		c.reconnectAttempts++
		if c.config.ReconnectMaxAttempts > 0 && c.reconnectAttempts > c.config.ReconnectMaxAttempts {
			log.Printf("[ALERTS] Giving up after %d reconnect attempts", c.reconnectAttempts-1)
			c.setState(StateDisconnected)
			return
		}

		log.Printf("[ALERTS] Reconnecting (attempt %d)", c.reconnectAttempts)
		if err := c.Connect(context.Background()); err == nil {
			return
		}

		delay *= 2
		if delay > c.config.ReconnectMaxDelay {
			delay = c.config.ReconnectMaxDelay
		}
	}
}

// foldTokenName normalizes a token address or name for matching: lowercased,
// accents stripped. Scam tokens routinely impersonate known names with
// homoglyphs.
func foldTokenName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)
	return strings.ToLower(strings.TrimSpace(name))
}
