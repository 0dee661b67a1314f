package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/avelinsk/livevote-backend/internal/types"
)

type Role string

const (
	RoleDisplay     Role = "display"
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleDisplay, RoleHost, RoleParticipant:
		return Role(s), true
	}
	return "", false
}

// Client is one live connection. The role is fixed for the connection's
// lifetime; outbox is drained by the transport's writer goroutine and
// closed by the hub on unregister.
type Client struct {
	role   Role
	outbox chan []byte
}

func NewClient(role Role) *Client {
	return &Client{role: role, outbox: make(chan []byte, 16)}
}

func (c *Client) Role() Role { return c.role }

// Outbox is the stream of marshaled messages for this client. It is
// closed when the client is unregistered.
func (c *Client) Outbox() <-chan []byte { return c.outbox }

// Hub is the registry of live connections, indexed by role. All index
// mutations and broadcasts are serialized on one mutex so a broadcast
// walking the set never races a register or unregister.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	byRole  map[Role]map[*Client]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byRole:  make(map[Role]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.byRole[c.role] == nil {
		h.byRole[c.role] = make(map[*Client]struct{})
	}
	h.byRole[c.role][c] = struct{}{}
	h.log.Info("client connected", zap.String("role", string(c.role)), zap.Int("total", len(h.clients)))
}

// Unregister removes a client from both indices and closes its outbox.
// Safe to call more than once and concurrently with a broadcast.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	delete(h.byRole[c.role], c)
	close(c.outbox)
	h.log.Info("client disconnected", zap.String("role", string(c.role)), zap.Int("total", len(h.clients)))
}

// Broadcast delivers msg to every live connection. A client whose outbox
// is full is dropped as part of the call; one slow recipient never blocks
// or aborts delivery to the others.
func (h *Hub) Broadcast(msg types.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("broadcast marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.deliver(c, payload)
	}
}

// BroadcastToRole is Broadcast restricted to one role. An unknown or
// empty role set is a no-op.
func (h *Hub) BroadcastToRole(role Role, msg types.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("broadcast marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byRole[role] {
		h.deliver(c, payload)
	}
}

// Send delivers msg to a single client, used for late-join snapshots.
func (h *Hub) Send(c *Client, msg types.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("send marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.deliver(c, payload)
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.outbox <- payload:
	default:
		// Outbox full: the client is too slow to keep up, drop it and
		// let it recover via a fresh connection and snapshot.
		h.log.Warn("dropping slow client", zap.String("role", string(c.role)))
		h.drop(c)
	}
}

// Count reports the number of live connections, optionally per role.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) CountRole(role Role) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byRole[role])
}
