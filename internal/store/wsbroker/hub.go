package wsbroker

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

type peer struct {
	ws   *websocket.Conn
	send chan Message
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() { close(p.send) })
}

// Hub is an http.Handler that upgrades every request to a websocket and
// relays writes between the connected clients.
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu     sync.Mutex
	values map[string][]byte
	peers  map[*peer]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Clients are local processes, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:    log.With().Str("component", "broker").Logger(),
		values: make(map[string][]byte),
		peers:  make(map[*peer]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Snapshot returns a copy of the values the hub currently holds.
func (h *Hub) Snapshot() map[string][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]byte, len(h.values))
	for k, v := range h.values {
		out[k] = bytes.Clone(v)
	}
	return out
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	p := &peer{ws: ws, send: make(chan Message, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	entries := make(map[string][]byte, len(h.values))
	for k, v := range h.values {
		entries[k] = bytes.Clone(v)
	}
	// The snapshot is queued before the peer is visible to relays, so it is
	// always the first frame the client reads.
	p.send <- Message{Op: OpSnapshot, Entries: entries}
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()

	h.log.Debug().Str("remote", r.RemoteAddr).Int("clients", n).Msg("client connected")

	go h.writeLoop(p)
	h.readLoop(p)
}

func (h *Hub) readLoop(p *peer) {
	defer func() {
		h.mu.Lock()
		delete(h.peers, p)
		n := len(h.peers)
		h.mu.Unlock()
		p.close()
		_ = p.ws.Close()
		h.log.Debug().Int("clients", n).Msg("client disconnected")
	}()

	for {
		var msg Message
		if err := p.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("client read failed")
			}
			return
		}
		switch msg.Op {
		case OpSet, OpDelete:
			h.apply(p, msg)
		default:
			h.log.Debug().Str("op", msg.Op).Msg("ignoring unknown op")
		}
	}
}

// apply stores a client write and relays it to every client, the sender
// included. Both happen under the hub lock so all clients observe writes in
// one order.
func (h *Hub) apply(from *peer, msg Message) {
	if msg.Op == OpSet && msg.Value == nil {
		msg.Value = []byte{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Op == OpDelete {
		delete(h.values, msg.Key)
		msg.Value = nil
	} else {
		h.values[msg.Key] = bytes.Clone(msg.Value)
	}
	for p := range h.peers {
		out := msg
		out.Echo = p == from
		select {
		case p.send <- out:
		default:
			h.log.Warn().Msg("client too slow, dropping connection")
			delete(h.peers, p)
			p.close()
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	defer p.ws.Close()
	for msg := range p.send {
		_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.ws.WriteJSON(msg); err != nil {
			h.log.Debug().Err(err).Msg("client write failed")
			return
		}
	}
	_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close disconnects every client. The hub refuses new connections after.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for p := range h.peers {
		delete(h.peers, p)
		p.close()
	}
}
