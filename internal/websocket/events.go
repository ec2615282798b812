package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"denguespot-chat/internal/domain"
)

// Client -> server event names.
const (
	EventJoinRoom       = "join-room"
	EventSendMessage    = "send-message"
	EventToggleReaction = "toggle-reaction"
	EventDeleteMessage  = "delete-message"
	EventTyping         = "typing"
	EventStopTyping     = "stop-typing"
)

// Server -> client event names.
const (
	EventJoined          = "joined"
	EventNewMessage      = "new-message"
	EventReactionUpdated = "reaction-updated"
	EventMessageDeleted  = "message-deleted"
	EventOnlineCount     = "online-count"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUserTyping      = "user-typing"
	EventUserStopTyping  = "user-stop-typing"
	EventError           = "error-msg"
)

// Envelope is the wire frame for every socket event in both directions:
// an event name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload carries a join request. The bearer token is verified
// per event, not per connection.
type JoinRoomPayload struct {
	Room  string `json:"room"`
	Token string `json:"token"`
}

type SendMessagePayload struct {
	Room  string `json:"room"`
	Text  string `json:"text"`
	Token string `json:"token"`
}

type ToggleReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Token     string `json:"token"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
	Token     string `json:"token"`
}

type TypingPayload struct {
	Room string `json:"room"`
}

type JoinedPayload struct {
	Room     string `json:"room"`
	RoomName string `json:"roomName"`
}

// NewMessagePayload mirrors the persisted message document.
type NewMessagePayload struct {
	ID         string           `json:"_id"`
	Room       string           `json:"room"`
	UserID     string           `json:"userId"`
	UserName   string           `json:"userName"`
	UserAvatar string           `json:"userAvatar,omitempty"`
	Text       string           `json:"text"`
	Reactions  domain.Reactions `json:"reactions"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type ReactionUpdatedPayload struct {
	MessageID string           `json:"messageId"`
	Reactions domain.Reactions `json:"reactions"`
}

// MessageDeletedPayload carries only the id; clients render their own
// placeholder.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

type OnlineCountPayload struct {
	Count int `json:"count"`
}

type UserEventPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an envelope for the wire. Marshal failures are a
// programming error; they are logged and yield nil so callers skip the
// send.
func encodeEvent(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event payload",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return nil
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("failed to marshal event envelope",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return nil
	}
	return frame
}

func messagePayload(msg *domain.Message) NewMessagePayload {
	return NewMessagePayload{
		ID:         msg.ID,
		Room:       msg.Room,
		UserID:     msg.UserID,
		UserName:   msg.UserName,
		UserAvatar: msg.UserAvatar,
		Text:       msg.Text,
		Reactions:  msg.Reactions,
		CreatedAt:  msg.CreatedAt,
	}
}
