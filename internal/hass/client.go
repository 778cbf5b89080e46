// Package hass is a minimal Home Assistant WebSocket API client covering
// what a forecast card needs: the entity state cache, state_changed
// events, and per-entity forecast subscriptions.
package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/simonhale/forecastcard/internal/models"
)

const (
	dialTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
	callTimeout  = 30 * time.Second
)

type result struct {
	success bool
	payload gjson.Result
	errCode string
	errMsg  string
}

// Client is one authenticated WebSocket connection. It maintains an entity
// state cache primed from get_states and kept current by a state_changed
// subscription, so entity reads never round-trip.
type Client struct {
	url   string
	token string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	nextID    int64
	pending   map[int64]chan result
	handlers  map[int64]func(gjson.Result)
	states    map[string]*models.EntityState
	listeners []func(entityID string)

	done chan struct{}
}

// NewClient builds a client for the given WebSocket endpoint
// (ws://host:8123/api/websocket) and long-lived access token.
func NewClient(url, token string) *Client {
	return &Client{
		url:      url,
		token:    token,
		pending:  make(map[int64]chan result),
		handlers: make(map[int64]func(gjson.Result)),
		states:   make(map[string]*models.EntityState),
	}
}

// Connect dials, authenticates, primes the state cache, and starts the
// read loop. Transient dial failures are retried with exponential backoff;
// a rejected token is permanent.
func (c *Client) Connect(ctx context.Context) error {
	operation := func() error {
		if err := c.dial(ctx); err != nil {
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}

	c.done = make(chan struct{})
	go c.readLoop()

	if err := c.primeStates(ctx); err != nil {
		c.Close()
		return fmt.Errorf("prime states: %w", err)
	}
	if err := c.watchStateChanges(ctx); err != nil {
		c.Close()
		return fmt.Errorf("watch state changes: %w", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	if err := c.authenticate(conn); err != nil {
		conn.Close()
		return err
	}
	c.conn = conn
	return nil
}

// authenticate runs the auth_required/auth/auth_ok handshake.
func (c *Client) authenticate(conn *websocket.Conn) error {
	_, first, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if t := gjson.GetBytes(first, "type").String(); t != "auth_required" {
		return backoff.Permanent(fmt.Errorf("unexpected handshake message %q", t))
	}

	auth := map[string]string{"type": "auth", "access_token": c.token}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	switch t := gjson.GetBytes(reply, "type").String(); t {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return backoff.Permanent(fmt.Errorf("access token rejected: %s", gjson.GetBytes(reply, "message").String()))
	default:
		return backoff.Permanent(fmt.Errorf("unexpected auth reply %q", t))
	}
}

// Close tears the connection down. Pending calls fail; Done is closed.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Done is closed when the read loop exits, which means the connection is
// dead and the caller should reconnect with a fresh client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer func() {
		c.failPending(fmt.Errorf("connection closed"))
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("hass: read: %v", err)
			return
		}
		c.route(data)
	}
}

func (c *Client) route(data []byte) {
	msg := gjson.ParseBytes(data)
	id := msg.Get("id").Int()

	switch msg.Get("type").String() {
	case "result":
		c.mu.Lock()
		ch := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ch == nil {
			return
		}
		ch <- result{
			success: msg.Get("success").Bool(),
			payload: msg.Get("result"),
			errCode: msg.Get("error.code").String(),
			errMsg:  msg.Get("error.message").String(),
		}
	case "event":
		c.mu.Lock()
		handler := c.handlers[id]
		c.mu.Unlock()
		if handler != nil {
			handler(msg.Get("event"))
		}
	case "pong":
	default:
		log.Printf("hass: unhandled message type %q", msg.Get("type").String())
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- result{success: false, errMsg: err.Error()}
	}
}

// call sends one command and waits for its result frame.
func (c *Client) call(ctx context.Context, payload map[string]any) (result, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan result, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload["id"] = id
	if err := c.write(payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return result{}, ctx.Err()
	case <-c.done:
		return result{}, fmt.Errorf("connection closed")
	}
}

func (c *Client) write(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(payload)
}

func (c *Client) primeStates(ctx context.Context) error {
	res, err := c.call(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return err
	}
	if !res.success {
		return fmt.Errorf("get_states: %s: %s", res.errCode, res.errMsg)
	}

	states := make(map[string]*models.EntityState)
	res.payload.ForEach(func(_, item gjson.Result) bool {
		var st models.EntityState
		if err := json.Unmarshal([]byte(item.Raw), &st); err == nil && st.EntityID != "" {
			states[st.EntityID] = &st
		}
		return true
	})

	c.mu.Lock()
	c.states = states
	c.mu.Unlock()
	log.Printf("hass: primed %d entity states", len(states))
	return nil
}

func (c *Client) watchStateChanges(ctx context.Context) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan result, 1)
	c.pending[id] = ch
	c.handlers[id] = c.onStateChanged
	c.mu.Unlock()

	payload := map[string]any{
		"id":         id,
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}
	if err := c.write(payload); err != nil {
		return err
	}

	select {
	case res := <-ch:
		if !res.success {
			return fmt.Errorf("subscribe_events: %s: %s", res.errCode, res.errMsg)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed")
	}
}

func (c *Client) onStateChanged(event gjson.Result) {
	entityID := event.Get("data.entity_id").String()
	if entityID == "" {
		return
	}
	newState := event.Get("data.new_state")

	c.mu.Lock()
	if !newState.Exists() || newState.Type == gjson.Null {
		delete(c.states, entityID)
	} else {
		var st models.EntityState
		if err := json.Unmarshal([]byte(newState.Raw), &st); err == nil {
			c.states[entityID] = &st
		}
	}
	listeners := make([]func(string), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(entityID)
	}
}

// EntityState returns the cached state of one entity, or nil when unknown.
func (c *Client) EntityState(entityID string) *models.EntityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[entityID]
}

// OnEntityChange registers a callback invoked with the entity ID of every
// state_changed event. Callbacks run on the read loop and must not block.
func (c *Client) OnEntityChange(fn func(entityID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
