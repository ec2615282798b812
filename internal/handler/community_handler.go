package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/middleware"
	"denguespot-chat/internal/service"

	"github.com/go-chi/chi/v5"
)

// OnlineCounter reports how many connections are in a room.
type OnlineCounter interface {
	OnlineCount(room string) int
}

// CommunityHandler handles community chat REST endpoints
type CommunityHandler struct {
	chatService *service.ChatService
	moderation  *service.ModerationService
	presence    OnlineCounter
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(chatService *service.ChatService, moderation *service.ModerationService, presence OnlineCounter) *CommunityHandler {
	return &CommunityHandler{
		chatService: chatService,
		moderation:  moderation,
		presence:    presence,
	}
}

// Pagination describes one page of room history
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasMore bool `json:"hasMore"`
}

// ListRooms returns the static room registry
func (h *CommunityHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"rooms":   domain.ListRooms(),
	})
}

// GetMessages returns one page of room history, oldest first
func (h *CommunityHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r.Context()); !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	room := chi.URLParam(r, "room")

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil {
			page = parsed
		}
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	result, err := h.chatService.GetRoomMessages(r.Context(), room, page, limit)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, `{"error":"Room not found"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"Failed to retrieve messages"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"messages": result.Messages,
		"pagination": Pagination{
			Page:    result.Page,
			Limit:   result.Limit,
			Total:   result.Total,
			Pages:   result.Pages,
			HasMore: result.HasMore,
		},
	})
}

// DeleteMessage soft-deletes a message. Unlike the socket path, the REST
// path surfaces not-found and authorization failures as status codes.
func (h *CommunityHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	messageID := chi.URLParam(r, "id")
	if messageID == "" {
		http.Error(w, `{"error":"Message ID required"}`, http.StatusBadRequest)
		return
	}

	decision, err := h.moderation.Authorize(r.Context(), userID, service.ActionDelete)
	if err != nil {
		http.Error(w, `{"error":"Failed to delete message"}`, http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		if decision.Reason == service.ReasonNotFound {
			http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
			return
		}
		http.Error(w, `{"error":"You are banned from chat"}`, http.StatusForbidden)
		return
	}

	if _, err := h.chatService.DeleteMessage(r.Context(), messageID, decision.User); err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound), errors.Is(err, domain.ErrMessageDeleted):
			http.Error(w, `{"error":"Message not found"}`, http.StatusNotFound)
		case errors.Is(err, domain.ErrNotAuthorized):
			http.Error(w, `{"error":"You can only delete your own messages"}`, http.StatusForbidden)
		default:
			http.Error(w, `{"error":"Failed to delete message"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// OnlineCount reports the live connection count for a room
func (h *CommunityHandler) OnlineCount(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !domain.IsValidRoom(room) {
		http.Error(w, `{"error":"Room not found"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"online":  h.presence.OnlineCount(room),
	})
}
