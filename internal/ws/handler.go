// Package ws serves the real-time WebSocket endpoints: chat rooms, the
// per-user notification stream, and live comments on a post.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/logging"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
	"github.com/shopfeed/backend/internal/services"
)

// ChatStore is the persistence the chat socket needs. *services.ChatService
// implements it.
type ChatStore interface {
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	SendMessage(ctx context.Context, sender auth.Identity, conversationID int64, content string) (models.MessageResponse, error)
}

type Options struct {
	SendBuffer        int
	MessagesPerSecond float64
	AllowedOrigins    []string
}

// Handler upgrades requests and owns every live connection.
type Handler struct {
	registry realtime.Registry
	chat     ChatStore
	opts     Options
	upgrader websocket.Upgrader
	validate *validator.Validate

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func NewHandler(registry realtime.Registry, chat ChatStore, opts Options) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 5
	}

	h := &Handler{
		registry: registry,
		chat:     chat,
		opts:     opts,
		validate: validator.New(),
		conns:    make(map[*Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients (no Origin header) and the
// configured browser origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return lo.Contains(h.opts.AllowedOrigins, origin)
}

// Chat serves /ws/chat/{conversationID}. Only authenticated users may
// connect. Participants join the room; anyone else gets a socket that never
// receives anything.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	h.serve(w, r, &identity, func(ctx context.Context, c *Conn) {
		member, err := h.chat.IsParticipant(ctx, conversationID, identity.ID)
		if err != nil {
			logging.LogErrorWithStatus(ctx, http.StatusInternalServerError, "participant check failed", err)
			return
		}
		if !member {
			logging.LogSecurityEvent(ctx, logging.SecurityEventNotParticipant, "chat socket opened by non-participant",
				slog.Int64("conversation_id", conversationID))
			return
		}
		c.join(realtime.ChatChannel(conversationID))
	}, h.chatInbound(identity, conversationID))
}

// Notifications serves /ws/notifications for the authenticated user.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	h.serve(w, r, &identity, func(_ context.Context, c *Conn) {
		c.join(realtime.NotifyUserChannel(identity.ID))
	}, nil)
}

// Post serves /ws/posts/{postID}. The stream is receive-only, so a token is
// optional.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	var identity *auth.Identity
	if id, ok := auth.FromContext(r.Context()); ok {
		identity = &id
	}

	h.serve(w, r, identity, func(_ context.Context, c *Conn) {
		c.join(realtime.PostChannel(postID))
	}, nil)
}

// Count returns the number of open connections.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every open connection. Each serving goroutine then leaves
// its channels and returns.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := lo.Keys(h.conns)
	h.mu.Unlock()

	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventSocketRejected, "socket upgrade without valid credentials")
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return identity, true
}

// serve upgrades the request and blocks until the connection ends. subscribe
// runs once after the upgrade; onMessage receives inbound data frames and may
// be nil for receive-only streams.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, identity *auth.Identity,
	subscribe func(ctx context.Context, c *Conn), onMessage func(ctx context.Context, data []byte)) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		return
	}

	c := newConn(wsConn, h.registry, identity, h.opts.SendBuffer)
	ctx := logging.WithConnID(r.Context(), c.id)
	if identity != nil {
		ctx = logging.UpdateRequestAttrs(ctx, identity.ID)
	}

	h.track(c)
	defer func() {
		c.shutdown(ctx)
		h.untrack(c)
	}()

	go c.writePump()
	subscribe(ctx, c)

	var handle func([]byte)
	if onMessage != nil {
		handle = func(data []byte) { onMessage(ctx, data) }
	}
	c.readPump(handle)
}

// chatInbound handles one client frame on a chat socket. Anything that is
// not a valid {"message": ...} object, arrives over the rate limit, or comes
// from a non-participant is dropped without a reply.
func (h *Handler) chatInbound(sender auth.Identity, conversationID int64) func(ctx context.Context, data []byte) {
	limiter := rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), max(1, int(h.opts.MessagesPerSecond)))

	return func(ctx context.Context, data []byte) {
		if !limiter.Allow() {
			logging.LogSecurityEvent(ctx, logging.SecurityEventSocketThrottled, "chat frame over rate limit")
			return
		}

		var in models.ChatMessageRequest
		if err := json.Unmarshal(data, &in); err != nil {
			slog.DebugContext(ctx, "dropping malformed chat frame", slog.Any("error", err))
			return
		}
		if err := h.validate.Struct(in); err != nil {
			slog.DebugContext(ctx, "dropping invalid chat frame", slog.Any("error", err))
			return
		}

		_, err := h.chat.SendMessage(ctx, sender, conversationID, in.Message)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrNotParticipant):
			logging.LogSecurityEvent(ctx, logging.SecurityEventNotParticipant, "chat message from non-participant dropped",
				slog.Int64("conversation_id", conversationID))
		default:
			logging.LogErrorWithStatus(ctx, http.StatusInternalServerError, "chat message not stored", err)
		}
	}
}

func (h *Handler) track(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
