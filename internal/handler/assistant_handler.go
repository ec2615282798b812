package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"denguespot-chat/internal/auth"
	"denguespot-chat/internal/observability"
	"denguespot-chat/internal/service"
)

const assistantTimeout = 30 * time.Second

// guestLimitMessage is returned verbatim once an anonymous session has
// used up its free questions.
const guestLimitMessage = "You've reached the free question limit. Please log in to continue chatting with DengueSpot AI."

// AssistantAsker forwards a question to the assistant bot and waits for
// its answer.
type AssistantAsker interface {
	AskAssistant(ctx context.Context, sessionID, question string) (string, error)
}

// AssistantHandler handles the AI assistant endpoint
type AssistantHandler struct {
	asker    AssistantAsker
	throttle *service.GuestThrottle
	tokens   *auth.TokenIssuer
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(asker AssistantAsker, throttle *service.GuestThrottle, tokens *auth.TokenIssuer) *AssistantHandler {
	return &AssistantHandler{
		asker:    asker,
		throttle: throttle,
		tokens:   tokens,
	}
}

// AssistantRequest represents an assistant question
type AssistantRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Ask forwards the question to the assistant bot. Anonymous sessions are
// throttled; a valid bearer token bypasses the throttle.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.SessionID == "" {
		http.Error(w, `{"error":"Message and sessionId are required"}`, http.StatusBadRequest)
		return
	}

	if !h.isAuthenticated(r) && !h.throttle.Allow(req.SessionID) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"response": guestLimitMessage,
			"limited":  true,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), assistantTimeout)
	defer cancel()

	answer, err := h.asker.AskAssistant(ctx, req.SessionID, req.Message)
	if err != nil {
		observability.AssistantRequests.WithLabelValues("error").Inc()
		http.Error(w, `{"error":"Assistant is unavailable, please try again later"}`, http.StatusBadGateway)
		return
	}

	observability.AssistantRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"response": answer,
	})
}

func (h *AssistantHandler) isAuthenticated(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	_, _, err := h.tokens.Verify(token)
	return err == nil
}
