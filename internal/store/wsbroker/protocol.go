// Package wsbroker shares a store between processes through a websocket hub.
// The hub holds the authoritative values and orders every write. It relays
// each write to all clients, the writer included, so every client's mirror
// replays the same sequence and ends at the hub's value.
package wsbroker

// Message ops.
const (
	OpSnapshot = "snapshot"
	OpSet      = "set"
	OpDelete   = "delete"
)

// Message is the single frame type on the wire, encoded as JSON text.
// Values are base64 encoded by encoding/json.
type Message struct {
	Op      string            `json:"op"`
	Key     string            `json:"key,omitempty"`
	Value   []byte            `json:"value,omitempty"`
	Entries map[string][]byte `json:"entries,omitempty"`
	// Echo marks a relayed write on the connection that sent it.
	Echo bool `json:"echo,omitempty"`
}
