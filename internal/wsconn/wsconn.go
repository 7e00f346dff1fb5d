// Package wsconn provides a reconnecting WebSocket client built on
// github.com/coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/autobot-tf/pricewatch/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, data []byte)

// StateChangeHandler is invoked on every state transition. err is non-nil
// when the transition was caused by a failure.
type StateChangeHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string // used in error context

	// Header is sent on every dial. HeaderFunc, when set, is called per dial
	// and merged over Header; use it for credentials that rotate.
	Header     http.Header
	HeaderFunc func() http.Header

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite

	PingInterval   time.Duration // 0 disables pings
	ReadTimeout    time.Duration // 0 = no per-read deadline
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20, // 1 MiB
	}
}

// Client is a reconnecting WebSocket client.
type Client struct {
	config Config

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	onMessage     MessageHandler
	onStateChange StateChangeHandler
	handlersMu    sync.RWMutex

	// baseCtx outlives individual connections; cancelled by Close.
	baseCtx   context.Context
	baseStop  context.CancelFunc
	closeOnce sync.Once

	// connGen increments on every successful dial so a stale read loop
	// never reconnects over a newer connection.
	connGen uint64
}

// New creates a client. The URL is validated eagerly.
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContext(fmt.Sprintf("invalid websocket url %q", config.URL)),
			apperror.WithCause(err))
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Client{
		config:   config,
		state:    StateDisconnected,
		baseCtx:  ctx,
		baseStop: stop,
	}, nil
}

// OnMessage registers the inbound message handler. Must be set before Connect
// for no messages to be dropped.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = handler
	c.handlersMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlersMu.Lock()
	c.onStateChange = handler
	c.handlersMu.Unlock()
}

// Connect performs a single dial attempt.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateClosed {
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(c.config.Name))
	}

	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: c.dialHeader(),
	})
	if err != nil {
		c.setState(StateDisconnected, err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "client closed")
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(c.config.Name))
	}
	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn, gen)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn, gen)
	}

	return nil
}

// ConnectWithRetry dials with exponential backoff until it succeeds, the
// context is done, or MaxReconnects attempts fail.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if apperror.GetCode(err) == apperror.CodeWebSocketClosed {
			return err
		}
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return apperror.New(apperror.CodeWebSocketConnectionError,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("%s: gave up after %d attempts", c.config.Name, attempt)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.baseCtx.Done():
			return apperror.New(apperror.CodeWebSocketClosed,
				apperror.WithContext(c.config.Name))
		case <-time.After(backoff):
		}

		backoff *= 2
		if c.config.MaxBackoff > 0 && backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// Reconnect drops the current connection, if any, and dials again with retry.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(c.config.Name))
	}
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "reconnecting")
		c.conn = nil
	}
	c.mu.Unlock()

	return c.ConnectWithRetry(ctx)
}

// Send writes a raw message, honoring the configured write timeout.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(fmt.Sprintf("%s: not connected (state %s)", c.config.Name, state)))
	}

	wctx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
	defer cancel()

	if err := conn.Write(wctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name+": marshal"))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// IsConnecting reports whether a dial or reconnect is in progress.
func (c *Client) IsConnecting() bool {
	s := c.State()
	return s == StateConnecting || s == StateReconnecting
}

// Close shuts the client down. Safe to call repeatedly and when not connected.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.state = StateClosed
		c.mu.Unlock()

		c.baseStop()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
		}
		c.notifyState(StateClosed, nil)
	})
	return nil
}

func (c *Client) dialHeader() http.Header {
	h := http.Header{}
	for k, vs := range c.config.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if c.config.HeaderFunc != nil {
		for k, vs := range c.config.HeaderFunc() {
			h.Del(k)
			for _, v := range vs {
				h.Add(k, v)
			}
		}
	}
	return h
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.notifyState(state, err)
}

func (c *Client) notifyState(state State, err error) {
	c.handlersMu.RLock()
	handler := c.onStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state, err)
	}
}

// readLoop pumps messages for one connection generation. On read failure it
// transitions to reconnecting and dials again, unless the client was closed
// or a newer connection already took over.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		rctx := c.baseCtx
		var cancel context.CancelFunc
		if c.config.ReadTimeout > 0 {
			rctx, cancel = context.WithTimeout(c.baseCtx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(rctx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			c.handleReadFailure(conn, gen, err)
			return
		}

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(c.baseCtx, data)
		}
	}
}

func (c *Client) handleReadFailure(conn *websocket.Conn, gen uint64, err error) {
	conn.Close(websocket.StatusInternalError, "read failure")

	c.mu.Lock()
	stale := c.connGen != gen || c.state == StateClosed
	if !stale && c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	if stale || c.baseCtx.Err() != nil {
		return
	}

	c.setState(StateReconnecting, err)
	if rerr := c.ConnectWithRetry(c.baseCtx); rerr != nil {
		c.setState(StateDisconnected, rerr)
	}
}

// pingLoop keeps the connection alive for one connection generation.
func (c *Client) pingLoop(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.baseCtx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.connGen == gen && c.conn == conn
			c.mu.RUnlock()
			if !current {
				return
			}
			pctx, cancel := context.WithTimeout(c.baseCtx, c.config.WriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return // read loop will observe the failure
			}
		}
	}
}
