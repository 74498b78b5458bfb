package wsbroker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mj1618/winsync/internal/store"
	"github.com/rs/zerolog"
)

// ErrDisconnected is returned by writes after the hub connection dropped.
var ErrDisconnected = errors.New("wsbroker: disconnected from hub")

type subscription struct {
	fn func([]byte)
}

// pending is a write sent to the hub whose echo has not come back yet.
type pending struct {
	value   []byte
	deleted bool
	n       int
}

// Client is a store.Store backed by a hub connection. The mirror is only
// changed by frames from the hub, in hub order. Reads of a key with writes
// still in flight return the latest of those writes.
type Client struct {
	ws   *websocket.Conn
	log  zerolog.Logger
	done chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	values  map[string][]byte
	pending map[string]*pending
	subs    map[string][]*subscription
	err    error
	closed bool
}

var _ store.Store = (*Client)(nil)

// Dial connects to the hub at url (ws://host:port/) and waits for the
// initial snapshot.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", url, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	var first Message
	if err := ws.ReadJSON(&first); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read broker snapshot: %w", err)
	}
	if first.Op != OpSnapshot {
		_ = ws.Close()
		return nil, fmt.Errorf("read broker snapshot: unexpected op %q", first.Op)
	}
	_ = ws.SetReadDeadline(time.Time{})

	values := first.Entries
	if values == nil {
		values = make(map[string][]byte)
	}
	for k, v := range values {
		if v == nil {
			values[k] = []byte{}
		}
	}

	c := &Client{
		ws:     ws,
		log:     log.With().Str("component", "broker-client").Logger(),
		done:    make(chan struct{}),
		values:  values,
		pending: make(map[string]*pending),
		subs:    make(map[string][]*subscription),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.err = ErrDisconnected
			c.mu.Unlock()
			if !closed {
				c.log.Warn().Err(err).Msg("lost connection to broker")
			}
			return
		}

		var value []byte
		c.mu.Lock()
		switch msg.Op {
		case OpSet:
			value = msg.Value
			if value == nil {
				value = []byte{}
			}
			c.values[msg.Key] = value
		case OpDelete:
			delete(c.values, msg.Key)
		default:
			c.mu.Unlock()
			continue
		}
		p := c.pending[msg.Key]
		if msg.Echo && p != nil {
			p.n--
			if p.n <= 0 {
				delete(c.pending, msg.Key)
			}
		}
		if msg.Echo || p != nil {
			// Our own write, or a write the hub ordered before one of ours
			// still in flight. Neither is news to subscribers.
			c.mu.Unlock()
			continue
		}
		subs := append([]*subscription(nil), c.subs[msg.Key]...)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.fn(bytes.Clone(value))
		}
	}
}

func (c *Client) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	return c.err
}

func (c *Client) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The mirror stays readable after a disconnect.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	if p := c.pending[key]; p != nil {
		if p.deleted {
			return nil, store.ErrNotFound
		}
		return bytes.Clone(p.value), nil
	}
	v, ok := c.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (c *Client) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return c.send(ctx, Message{Op: OpSet, Key: key, Value: value})
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.send(ctx, Message{Op: OpDelete, Key: key})
}

func (c *Client) send(ctx context.Context, msg Message) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	p := c.pending[msg.Key]
	if p == nil {
		p = &pending{}
		c.pending[msg.Key] = p
	}
	p.value, p.deleted = bytes.Clone(msg.Value), msg.Op == OpDelete
	p.n++
	c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(msg); err != nil {
		c.mu.Lock()
		delete(c.pending, msg.Key)
		c.mu.Unlock()
		return fmt.Errorf("send %s %s: %w", msg.Op, msg.Key, err)
	}
	return nil
}

func (c *Client) Subscribe(key string, fn func(value []byte)) func() {
	sub := &subscription{fn: fn}
	c.mu.Lock()
	c.subs[key] = append(c.subs[key], sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.subs[key]
			for i, x := range list {
				if x == sub {
					c.subs[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Close sends a close frame and waits for the read loop to finish.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.subs = make(map[string][]*subscription)
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	return c.ws.Close()
}
