package handlers

import (
	"net/http"

	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/services"
)

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	notes *services.NotificationService
}

func NewNotificationHandler(notes *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	me, ok := identity(w, r)
	if !ok {
		return
	}

	list, err := h.notes.List(r.Context(), me.ID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	me, ok := identity(w, r)
	if !ok {
		return
	}

	n, err := h.notes.CountUnread(r.Context(), me.ID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UnreadCountResponse{Count: n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	me, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.notes.MarkRead(r.Context(), me.ID, id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MarkReadResponse{Status: "marked as read", Updated: 1})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	me, ok := identity(w, r)
	if !ok {
		return
	}

	n, err := h.notes.MarkAllRead(r.Context(), me.ID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MarkReadResponse{Status: "all marked as read", Updated: n})
}
