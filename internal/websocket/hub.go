package websocket

import (
	"context"
	"log/slog"
	"time"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/observability"
)

// settleDelay coalesces the online-count recount after a disconnect so a
// rapid reconnect does not flap the count.
const settleDelay = 100 * time.Millisecond

// Identity is the authenticated principal behind a connection, captured
// at join time for presence notifications.
type Identity struct {
	UserID   string
	UserName string
	Avatar   string
}

// presenceEntry tracks one connection's current room. A connection is in
// at most one room; it is removed on disconnect or replaced on switch.
type presenceEntry struct {
	identity Identity
	room     string
}

type broadcastRequest struct {
	room   string
	event  string
	data   []byte
	except *Client
}

type joinRequest struct {
	client   *Client
	identity Identity
	room     domain.Room
}

type typingRequest struct {
	client *Client
	room   string
	stop   bool
}

type countRequest struct {
	room  string
	reply chan int
}

// Hub owns room membership and presence, and fans events out to every
// connection in a room. All state is confined to the Run goroutine, so
// broadcasts within one room are observed in the order the hub processed
// them.
type Hub struct {
	// Connections by room; only connections that joined a room appear here.
	rooms map[string]map[*Client]bool

	// Presence entries for connections currently in a room.
	presence map[*Client]*presenceEntry

	broadcast  chan *broadcastRequest
	join       chan *joinRequest
	typing     chan *typingRequest
	count      chan *countRequest
	recount    chan string
	unregister chan *Client

	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		presence:   make(map[*Client]*presenceEntry),
		broadcast:  make(chan *broadcastRequest, 256),
		join:       make(chan *joinRequest),
		typing:     make(chan *typingRequest, 64),
		count:      make(chan *countRequest),
		recount:    make(chan string, 64),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case req := <-h.join:
			h.handleJoin(req)

		case client := <-h.unregister:
			h.handleLeave(client)

		case req := <-h.typing:
			h.handleTyping(req)

		case req := <-h.count:
			req.reply <- len(h.rooms[req.room])

		case room := <-h.recount:
			h.emitOnlineCount(room)

		case req := <-h.broadcast:
			h.fanOut(req)
		}
	}
}

// handleJoin moves the connection into the target room, leaving its
// previous room first if it had one. The join acknowledgment, the
// user-joined notification and the recomputed count are all emitted from
// here so members observe them in a consistent order.
func (h *Hub) handleJoin(req *joinRequest) {
	client := req.client

	if prev, ok := h.presence[client]; ok {
		if prev.room == req.room.ID {
			// Re-join of the same room: just re-acknowledge.
			client.enqueue(encodeEvent(EventJoined, JoinedPayload{Room: req.room.ID, RoomName: req.room.Name}))
			return
		}
		// Implicit leave: the old room learns immediately.
		oldRoom := prev.room
		h.removeFromRoom(client, prev)
		h.emitOnlineCount(oldRoom)
	}

	if h.rooms[req.room.ID] == nil {
		h.rooms[req.room.ID] = make(map[*Client]bool)
	}
	h.rooms[req.room.ID][client] = true
	h.presence[client] = &presenceEntry{identity: req.identity, room: req.room.ID}
	observability.WebSocketConnectionsActive.WithLabelValues(req.room.ID).Inc()

	client.setRoom(req.room.ID)
	client.enqueue(encodeEvent(EventJoined, JoinedPayload{Room: req.room.ID, RoomName: req.room.Name}))

	h.fanOut(&broadcastRequest{
		room:  req.room.ID,
		event: EventUserJoined,
		data: encodeEvent(EventUserJoined, UserEventPayload{
			UserID:   req.identity.UserID,
			UserName: req.identity.UserName,
		}),
	})
	h.emitOnlineCount(req.room.ID)

	slog.Info("client joined room",
		slog.String("user", req.identity.UserName),
		slog.String("room", req.room.ID))
}

// handleLeave removes a disconnected client. The user-left notification
// goes out immediately; the count is recomputed after a settle delay.
func (h *Hub) handleLeave(client *Client) {
	entry, ok := h.presence[client]
	if !ok {
		// Connected but never joined a room.
		h.closeClientSend(client)
		return
	}

	room := entry.room
	h.removeFromRoom(client, entry)
	h.closeClientSend(client)

	// A vanished connection can leave a stale typing indicator behind,
	// so clear it for the room proactively.
	h.fanOut(&broadcastRequest{
		room:  room,
		event: EventUserStopTyping,
		data:  encodeEvent(EventUserStopTyping, UserEventPayload{UserID: entry.identity.UserID}),
	})

	time.AfterFunc(settleDelay, func() {
		select {
		case h.recount <- room:
		case <-h.done:
		}
	})

	slog.Info("client left room",
		slog.String("user", entry.identity.UserName),
		slog.String("room", room))
}

// removeFromRoom drops the client from its current room and notifies the
// remaining members. Shared by disconnects, implicit leaves on switch and
// slow-client eviction.
func (h *Hub) removeFromRoom(client *Client, entry *presenceEntry) {
	room := entry.room
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.presence, client)
	client.setRoom("")
	observability.WebSocketConnectionsActive.WithLabelValues(room).Dec()

	h.fanOut(&broadcastRequest{
		room:  room,
		event: EventUserLeft,
		data: encodeEvent(EventUserLeft, UserEventPayload{
			UserID:   entry.identity.UserID,
			UserName: entry.identity.UserName,
		}),
	})
}

// handleTyping relays typing indicators to everyone in the room except
// the sender. Connections without a presence entry are ignored.
func (h *Hub) handleTyping(req *typingRequest) {
	entry, ok := h.presence[req.client]
	if !ok {
		return
	}

	if req.stop {
		h.fanOut(&broadcastRequest{
			room:   req.room,
			event:  EventUserStopTyping,
			data:   encodeEvent(EventUserStopTyping, UserEventPayload{UserID: entry.identity.UserID}),
			except: req.client,
		})
		return
	}

	h.fanOut(&broadcastRequest{
		room:  req.room,
		event: EventUserTyping,
		data: encodeEvent(EventUserTyping, UserEventPayload{
			UserID:   entry.identity.UserID,
			UserName: entry.identity.UserName,
		}),
		except: req.client,
	})
}

// fanOut delivers one event to every connection in the room, skipping
// the excluded sender if set. Clients with a full send buffer are
// dropped from the room rather than blocking the loop.
func (h *Hub) fanOut(req *broadcastRequest) {
	if req.data == nil {
		return
	}
	clients, ok := h.rooms[req.room]
	if !ok {
		return
	}
	for client := range clients {
		if client == req.except {
			continue
		}
		select {
		case client.send <- req.data:
			observability.WebSocketEventsSent.WithLabelValues(req.room, req.event).Inc()
		default:
			// Client's send buffer is full, close connection
			h.evict(client)
		}
	}
}

// evict drops a client that stopped draining its send buffer. The
// departure takes the same path as a disconnect so the room hears
// user-left and the connection gauge stays accurate.
func (h *Hub) evict(client *Client) {
	h.closeClientSend(client)
	entry, ok := h.presence[client]
	if !ok {
		return
	}
	room := entry.room
	h.removeFromRoom(client, entry)
	h.emitOnlineCount(room)
}

func (h *Hub) emitOnlineCount(room string) {
	h.fanOut(&broadcastRequest{
		room:  room,
		event: EventOnlineCount,
		data:  encodeEvent(EventOnlineCount, OnlineCountPayload{Count: len(h.rooms[room])}),
	})
}

// closeClientSend safely closes a client's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for room, clients := range h.rooms {
		for client := range clients {
			h.closeClientSend(client)
			slog.Info("closed client connection", slog.String("room", room))
		}
	}

	slog.Info("hub shutdown complete")
}

// Join asks the hub to move the client into the room. The caller has
// already authenticated the identity and validated the room.
func (h *Hub) Join(client *Client, identity Identity, room domain.Room) {
	h.join <- &joinRequest{client: client, identity: identity, room: room}
}

// Unregister removes a client from the hub on disconnect.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends an event to all clients in a room.
func (h *Hub) Broadcast(room, event string, data []byte) {
	h.broadcast <- &broadcastRequest{room: room, event: event, data: data}
}

// Typing relays a typing indicator on behalf of the client.
func (h *Hub) Typing(client *Client, room string, stop bool) {
	select {
	case h.typing <- &typingRequest{client: client, room: room, stop: stop}:
	case <-h.done:
	}
}

// OnlineCount reports the number of connections currently in the room.
func (h *Hub) OnlineCount(room string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- &countRequest{room: room, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}
