// Package server coordinates connection registration, room membership and
// room-scoped broadcast via the Hub type.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// DefaultName is the display name of a connection that has not joined yet.
const DefaultName = "Anonymous"

// ErrShuttingDown is returned when a connection arrives during shutdown.
var ErrShuttingDown = errors.New("hub is shutting down")

// HubConfig wires a Hub to its collaborators.
type HubConfig struct {
	Rooms   *rooms.Registry
	History *history.Store
	Client  ClientConfig
	Logger  *zerolog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// member is the registry entry of one connection.
type member struct {
	client *Client
	name   string
	room   string
}

// Hub is the connection registry and broadcast engine. It is the single
// source of truth for which connection is in which room. All methods are
// safe for concurrent use; a send to a connection removed concurrently is
// skipped.
type Hub struct {
	rooms     *rooms.Registry
	history   *history.Store
	clientCfg ClientConfig
	logger    zerolog.Logger
	clock     func() time.Time

	mu      sync.RWMutex
	members map[string]*member
	closing bool

	tsMu   sync.Mutex
	lastTS int64

	wg sync.WaitGroup
}

// NewHub creates a Hub with no connections.
func NewHub(cfg HubConfig) *Hub {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "hub").Logger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Hub{
		rooms:     cfg.Rooms,
		history:   cfg.History,
		clientCfg: cfg.Client,
		logger:    logger,
		clock:     clock,
		members:   make(map[string]*member),
	}
}

// Rooms returns the room registry.
func (h *Hub) Rooms() *rooms.Registry {
	return h.rooms
}

// Register adds client in the default room under the default name and
// returns its id.
func (h *Hub) Register(client *Client) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return "", ErrShuttingDown
	}

	h.members[client.id] = &member{
		client: client,
		name:   DefaultName,
		room:   h.rooms.Default(),
	}
	h.logger.Info().Str("conn", client.id).Str("addr", client.addr).Int("total", len(h.members)).Msg("Client registered")
	return client.id, nil
}

// SetIdentity sets the display name of id. An empty name keeps the current
// one. It returns the effective name.
func (h *Hub) SetIdentity(id, name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok {
		return "", false
	}
	if name != "" {
		m.name = name
	}
	return m.name, true
}

// SetRoom moves id to room, or to the default room when room is unknown.
// It returns the previous and the new room.
func (h *Hub) SetRoom(id, room string) (from, to string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok {
		return "", "", false
	}
	from = m.room
	m.room = h.rooms.Resolve(room)
	return from, m.room, true
}

// Lookup returns the display name and room of id.
func (h *Hub) Lookup(id string) (name, room string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.members[id]
	if !ok {
		return "", "", false
	}
	return m.name, m.room, true
}

// Unregister removes id and closes its outbound queue. Only the first call
// for an id reports ok, together with the name and room it had.
func (h *Hub) Unregister(id string) (name, room string, ok bool) {
	h.mu.Lock()
	m, ok := h.members[id]
	if ok {
		delete(h.members, id)
	}
	total := len(h.members)
	h.mu.Unlock()

	if !ok {
		return "", "", false
	}

	m.client.closeSend()
	h.logger.Info().Str("conn", id).Str("addr", m.client.addr).Int("total", total).Msg("Client unregistered")
	return m.name, m.room, true
}

// MembersOf returns the clients currently in room.
func (h *Hub) MembersOf(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	in := lo.Filter(lo.Values(h.members), func(m *member, _ int) bool {
		return m.room == room
	})
	return lo.Map(in, func(m *member, _ int) *Client {
		return m.client
	})
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// RoomCounts returns the number of connections in every known room.
func (h *Hub) RoomCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.rooms.List()))
	for _, room := range h.rooms.List() {
		counts[room] = 0
	}
	for _, m := range h.members {
		counts[m.room]++
	}
	return counts
}

// BroadcastToRoom queues payload for every client in room and returns how
// many accepted it. Closed clients are skipped. A client whose queue is full
// is skipped and its transport closed, so a slow peer never stalls the others.
func (h *Hub) BroadcastToRoom(room string, payload []byte) int {
	delivered := 0
	for _, client := range h.MembersOf(room) {
		switch err := client.trySend(payload); {
		case err == nil:
			delivered++
		case errors.Is(err, errSendBufferFull):
			h.logger.Warn().Str("conn", client.id).Str("room", room).Msg("Send buffer full, dropping slow client")
			client.closeConnection()
		}
	}
	h.logger.Debug().Str("room", room).Int("recipients", delivered).Msg("Broadcast")
	return delivered
}

// timestamp returns the current time in milliseconds, never earlier than a
// previously returned value.
func (h *Hub) timestamp() time.Time {
	h.tsMu.Lock()
	defer h.tsMu.Unlock()

	ms := h.clock().UnixMilli()
	if ms < h.lastTS {
		ms = h.lastTS
	}
	h.lastTS = ms
	return time.UnixMilli(ms)
}

// Serve runs a session for conn until it disconnects. It returns once the
// session's pumps are started.
func (h *Hub) Serve(conn *websocket.Conn, addr string) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return ErrShuttingDown
	}
	h.wg.Add(2)
	h.mu.Unlock()

	client := NewClient(conn, addr, h.clientCfg)
	session, err := h.Connect(client)
	if err != nil {
		h.wg.Add(-2)
		client.closeConnection()
		return err
	}

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump(session)
	}()
	return nil
}

// Shutdown refuses new connections, closes every open one and waits for
// their pumps to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info().Msg("Initiating hub shutdown...")

	h.mu.Lock()
	h.closing = true
	clients := lo.Map(lo.Values(h.members), func(m *member, _ int) *Client {
		return m.client
	})
	h.mu.Unlock()

	for _, client := range clients {
		client.closeConnection()
	}
	h.logger.Info().Int("connections", len(clients)).Msg("Closed client connections")

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.logger.Warn().Msg("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
