package handlers

import (
	"errors"
	"net/http"

	"github.com/shopfeed/backend/internal/logging"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SendMessage handles POST /api/conversations/{id}/messages. A
// non-participant gets 404 so the conversation's existence is not revealed.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender, ok := identity(w, r)
	if !ok {
		return
	}
	conversationID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req models.ChatMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), sender, conversationID, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventNotParticipant, "message to foreign conversation")
		}
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
