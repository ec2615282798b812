package handler

import (
	"context"
	"log/slog"
	"net/http"

	"denguespot-chat/internal/auth"
	"denguespot-chat/internal/service"
	ws "denguespot-chat/internal/websocket"

	"github.com/gorilla/websocket"
)

// WebSocketHandler handles WebSocket connections. The upgrade itself is
// anonymous; every mutating socket event carries its own bearer token.
type WebSocketHandler struct {
	hub         *ws.Hub
	chatService *service.ChatService
	moderation  *service.ModerationService
	tokens      *auth.TokenIssuer
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, chatService *service.ChatService, moderation *service.ModerationService,
	tokens *auth.TokenIssuer, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatService: chatService,
		moderation:  moderation,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context dies with the handler; the client outlives it.
	client := ws.NewClient(context.Background(), h.hub, conn, h.chatService, h.moderation, h.tokens)

	go client.WritePump()
	go client.ReadPump()
}
