package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"denguespot-chat/internal/auth"
	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
	opTimeout      = 5 * time.Second
)

// Client is one websocket connection. Authentication happens per event:
// every mutating payload carries a bearer token, so a ban lands on the
// user's next action even mid-connection.
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	chatService *service.ChatService
	moderation  *service.ModerationService
	tokens      *auth.TokenIssuer

	roomMu sync.Mutex
	room   string

	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn,
	chatService *service.ChatService, moderation *service.ModerationService,
	tokens *auth.TokenIssuer) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		id:          uuid.New().String(),
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		chatService: chatService,
		moderation:  moderation,
		tokens:      tokens,
		ctx:         clientCtx,
		ctxCancel:   cancel,
	}
}

// setRoom is called only from the hub goroutine.
func (c *Client) setRoom(room string) {
	c.roomMu.Lock()
	c.room = room
	c.roomMu.Unlock()
}

func (c *Client) currentRoom() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

// enqueue hands a frame to the write pump without blocking. Frames for a
// slow client are dropped; the hub handles eviction separately.
func (c *Client) enqueue(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(encodeEvent(EventError, ErrorPayload{Message: message}))
}

// authenticate verifies the event's token and re-checks ban state. A nil
// user means the caller must stop; the denial has already been surfaced.
func (c *Client) authenticate(token, action string) *domain.User {
	userID, _, err := c.tokens.Verify(token)
	if err != nil {
		c.sendError("Authentication required")
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	decision, err := c.moderation.Authorize(ctx, userID, action)
	if err != nil {
		slog.Error("moderation check failed",
			slog.String("error", err.Error()),
			slog.String("user_id", userID),
			slog.String("action", action))
		c.sendError("Something went wrong")
		return nil
	}
	if !decision.Allowed {
		switch decision.Reason {
		case service.ReasonNotFound:
			c.sendError("Authentication required")
		default:
			c.sendError("You are banned from chat: " + decision.Detail)
		}
		return nil
	}
	return decision.User
}

// ReadPump reads frames off the socket and dispatches them. It runs once
// per connection; the connection dies when it returns.
func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("connection_id", c.id))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("connection_id", c.id))
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			slog.Warn("invalid event frame",
				slog.String("error", err.Error()),
				slog.String("connection_id", c.id))
			continue
		}

		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *Envelope) {
	switch env.Event {
	case EventJoinRoom:
		c.handleJoinRoom(env.Data)
	case EventSendMessage:
		c.handleSendMessage(env.Data)
	case EventToggleReaction:
		c.handleToggleReaction(env.Data)
	case EventDeleteMessage:
		c.handleDeleteMessage(env.Data)
	case EventTyping:
		c.handleTyping(env.Data, false)
	case EventStopTyping:
		c.handleTyping(env.Data, true)
	default:
		slog.Debug("unknown event",
			slog.String("event", env.Event),
			slog.String("connection_id", c.id))
	}
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Invalid request")
		return
	}

	user := c.authenticate(payload.Token, service.ActionJoin)
	if user == nil {
		return
	}

	room, err := domain.GetRoom(payload.Room)
	if err != nil {
		c.sendError("Room not found")
		return
	}

	c.hub.Join(c, Identity{UserID: user.ID, UserName: user.Name, Avatar: user.Avatar}, room)
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Invalid request")
		return
	}

	user := c.authenticate(payload.Token, service.ActionSend)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	msg, err := c.chatService.SendMessage(ctx, payload.Room, user, payload.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			c.sendError("Room not found")
		case errors.Is(err, domain.ErrMessageEmpty):
			c.sendError("Message cannot be empty")
		case errors.Is(err, domain.ErrMessageTooLong):
			c.sendError("Message is too long")
		default:
			slog.Error("failed to save message",
				slog.String("error", err.Error()),
				slog.String("room", payload.Room),
				slog.String("user_id", user.ID))
			c.sendError("Failed to send message")
		}
		return
	}

	c.hub.Broadcast(msg.Room, EventNewMessage, encodeEvent(EventNewMessage, messagePayload(msg)))
}

func (c *Client) handleToggleReaction(data json.RawMessage) {
	var payload ToggleReactionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Invalid request")
		return
	}

	user := c.authenticate(payload.Token, service.ActionReact)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	msg, err := c.chatService.ToggleReaction(ctx, payload.MessageID, user.ID, payload.Emoji)
	if err != nil {
		slog.Error("failed to toggle reaction",
			slog.String("error", err.Error()),
			slog.String("message_id", payload.MessageID),
			slog.String("user_id", user.ID))
		c.sendError("Failed to update reaction")
		return
	}
	if msg == nil {
		// Unknown emoji, missing or deleted message: idempotent no-op.
		slog.Debug("reaction ignored",
			slog.String("message_id", payload.MessageID),
			slog.String("emoji", payload.Emoji))
		return
	}

	c.hub.Broadcast(msg.Room, EventReactionUpdated, encodeEvent(EventReactionUpdated, ReactionUpdatedPayload{
		MessageID: msg.ID,
		Reactions: msg.Reactions,
	}))
}

func (c *Client) handleDeleteMessage(data json.RawMessage) {
	var payload DeleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Invalid request")
		return
	}

	user := c.authenticate(payload.Token, service.ActionDelete)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	msg, err := c.chatService.DeleteMessage(ctx, payload.MessageID, user)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound),
			errors.Is(err, domain.ErrMessageDeleted),
			errors.Is(err, domain.ErrNotAuthorized):
			// Silent no-op: missing and already-deleted messages tolerate a
			// concurrent moderator delete, and a non-author gets no
			// acknowledgment at all. The REST path surfaces these instead.
			slog.Debug("delete ignored", slog.String("message_id", payload.MessageID))
		default:
			slog.Error("failed to delete message",
				slog.String("error", err.Error()),
				slog.String("message_id", payload.MessageID),
				slog.String("user_id", user.ID))
			c.sendError("Failed to delete message")
		}
		return
	}

	c.hub.Broadcast(msg.Room, EventMessageDeleted, encodeEvent(EventMessageDeleted, MessageDeletedPayload{
		MessageID: msg.ID,
	}))
}

func (c *Client) handleTyping(data json.RawMessage, stop bool) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	// Typing indicators are only relayed within the room the connection
	// actually sits in.
	room := c.currentRoom()
	if room == "" || payload.Room != room {
		return
	}

	c.hub.Typing(c, room, stop)
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline",
			slog.String("error", err.Error()),
			slog.String("connection_id", c.id))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
