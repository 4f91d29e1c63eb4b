// Package client is the Go SDK for the websocket gateway.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the client.
type Config struct {
	// ServerAddr is the gateway base URL, e.g. "ws://127.0.0.1:8080".
	ServerAddr string

	// Identity presented on the handshake URL.
	UserID string
	Role   string
	Guest  bool

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Envelope is the wire frame shared with the gateway.
type Envelope struct {
	Type  string         `json:"type"`
	Data  map[string]any `json:"data,omitempty"`
	Async bool           `json:"async,omitempty"`
}

// Result mirrors the gateway's action outcome payload.
type Result struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

type reply struct {
	envType string
	result  *Result
	errMsg  string
}

// EventHandler receives broadcast envelopes (entity changes and domain
// events), not request replies.
type EventHandler func(Envelope)

// Client is one gateway connection. The gateway answers requests in order,
// so replies are matched to callers FIFO.
type Client struct {
	config Config

	conn    *websocket.Conn
	writeMu sync.Mutex

	sessionID string
	playerID  string

	pendingMu sync.Mutex
	pending   []chan reply

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	connected int32 // atomic bool
	closed    int32 // atomic bool
	done      chan struct{}
}

func New(config Config) (*Client, error) {
	if config.ServerAddr == "" || config.UserID == "" {
		return nil, ErrInvalidConfig
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	return &Client{
		config:   config,
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
	}, nil
}

// Connect dials the gateway and waits for the welcome envelope.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.handshakeURL(), nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return fmt.Errorf("dialing gateway: %w", err)
	}

	var welcome Envelope
	if err = conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		atomic.StoreInt32(&c.connected, 0)
		return fmt.Errorf("reading welcome: %w", err)
	}
	if welcome.Type != "welcome" {
		_ = conn.Close()
		atomic.StoreInt32(&c.connected, 0)
		return fmt.Errorf("%w: expected welcome, got %q", ErrServerError, welcome.Type)
	}

	c.conn = conn
	c.sessionID, _ = welcome.Data["sessionId"].(string)
	c.playerID, _ = welcome.Data["playerId"].(string)

	go c.readLoop()
	return nil
}

func (c *Client) handshakeURL() string {
	q := url.Values{}
	q.Set("user", c.config.UserID)
	if c.config.Role != "" {
		q.Set("role", c.config.Role)
	}
	if c.config.Guest {
		q.Set("guest", "true")
	}
	return c.config.ServerAddr + "/ws?" + q.Encode()
}

// SessionID returns the id assigned by the gateway.
func (c *Client) SessionID() string { return c.sessionID }

// PlayerID returns the id of the player entity spawned for this session.
func (c *Client) PlayerID() string { return c.playerID }

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Do sends an action and waits for its result.
func (c *Client) Do(ctx context.Context, actionType string, data map[string]any) (*Result, error) {
	rep, err := c.roundTrip(ctx, Envelope{Type: actionType, Data: data})
	if err != nil {
		return nil, err
	}
	if rep.envType == "error" {
		return nil, fmt.Errorf("%w: %s", ErrServerError, rep.errMsg)
	}
	return rep.result, nil
}

// Enqueue stages an action for the gateway's next tick and waits only for
// the ack.
func (c *Client) Enqueue(ctx context.Context, actionType string, data map[string]any) error {
	rep, err := c.roundTrip(ctx, Envelope{Type: actionType, Data: data, Async: true})
	if err != nil {
		return err
	}
	if rep.envType != "queued" {
		return fmt.Errorf("%w: %s", ErrServerError, rep.errMsg)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, env Envelope) (reply, error) {
	if !c.IsConnected() {
		return reply{}, ErrNotConnected
	}

	ch := make(chan reply, 1)
	c.pendingMu.Lock()
	c.pending = append(c.pending, ch)
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		return reply{}, fmt.Errorf("sending %s: %w", env.Type, err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()
	select {
	case rep, ok := <-ch:
		if !ok {
			return reply{}, ErrNotConnected
		}
		return rep, nil
	case <-timer.C:
		return reply{}, ErrRequestTimeout
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-c.done:
		return reply{}, ErrClientClosed
	}
}

// On registers a handler for broadcast envelopes of one type.
func (c *Client) On(envelopeType string, handler EventHandler) {
	c.handlersMu.Lock()
	c.handlers[envelopeType] = append(c.handlers[envelopeType], handler)
	c.handlersMu.Unlock()
}

func (c *Client) readLoop() {
	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		c.failPending()
	}()

	for {
		var raw struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data,omitempty"`
		}
		if err := c.conn.ReadJSON(&raw); err != nil {
			return
		}

		switch raw.Type {
		case "result":
			res := &Result{}
			if ok, is := raw.Data["success"].(bool); is {
				res.Success = ok
			}
			res.Code, _ = raw.Data["code"].(string)
			res.Message, _ = raw.Data["message"].(string)
			res.Data, _ = raw.Data["data"].(map[string]any)
			c.resolve(reply{envType: raw.Type, result: res})
		case "queued", "error":
			msg, _ := raw.Data["message"].(string)
			c.resolve(reply{envType: raw.Type, errMsg: msg})
		default:
			c.dispatchEvent(Envelope{Type: raw.Type, Data: raw.Data})
		}
	}
}

// resolve hands a reply to the oldest waiting caller. Replies with no waiter
// are dropped.
func (c *Client) resolve(rep reply) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return
	}
	ch := c.pending[0]
	c.pending = c.pending[1:]
	ch <- rep
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (c *Client) dispatchEvent(env Envelope) {
	c.handlersMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[env.Type]...)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		return c.conn.Close()
	}
	return nil
}
