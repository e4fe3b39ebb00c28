// Package router wires services, handlers and middleware into the HTTP
// surface.
package router

import (
	"context"
	"database/sql"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/config"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
	"github.com/shopfeed/backend/internal/handlers"
	"github.com/shopfeed/backend/internal/middleware"
	"github.com/shopfeed/backend/internal/realtime"
	"github.com/shopfeed/backend/internal/services"
	"github.com/shopfeed/backend/internal/ws"
)

// New builds the router. The returned ws.Handler owns the live sockets and
// must be closed on shutdown; ctx bounds background work such as rate
// limiter cleanup.
func New(ctx context.Context, cfg *config.Config, sqlDB *sql.DB, registry realtime.Registry) (http.Handler, *ws.Handler) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	queries := db.New(sqlDB)

	// Services
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenDuration, queries)
	emitter := events.NewEmitter(registry)
	followService := services.NewFollowService(sqlDB, emitter)
	postService := services.NewPostService(sqlDB, emitter, cfg.CommentMaxDepth)
	chatService := services.NewChatService(sqlDB, emitter)
	notificationService := services.NewNotificationService(queries)

	// Handlers
	socialHandler := handlers.NewSocialHandler(followService, postService)
	chatHandler := handlers.NewChatHandler(chatService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	socketHandler := ws.NewHandler(registry, chatService, ws.Options{
		SendBuffer:        cfg.SocketSendBuffer,
		MessagesPerSecond: cfg.SocketMessagesPerSecond,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
	})

	writeLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute)
	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})

	r.Route("/api", func(r chi.Router) {
		r.Use(sentryHandler.Handle)

		r.Get("/health", handlers.Health(registry))
		r.Get("/posts/{id}/comments", socialHandler.ListComments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authenticator))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread_count", notificationHandler.UnreadCount)
				r.Post("/mark_all_read", notificationHandler.MarkAllRead)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})

			// Writes that fan out are rate limited per client
			r.Group(func(r chi.Router) {
				r.Use(writeLimiter.Middleware)

				r.Put("/users/{id}/follow", socialHandler.Follow)
				r.Delete("/users/{id}/follow", socialHandler.Unfollow)
				r.Post("/posts/{id}/comments", socialHandler.CreateComment)
				r.Put("/posts/{id}/vote", socialHandler.Vote)
				r.Post("/conversations/{id}/messages", chatHandler.SendMessage)
			})
		})
	})

	// Sockets are served outside the Sentry wrapper so the upgrader gets the
	// raw ResponseWriter.
	r.Route("/ws", func(r chi.Router) {
		r.Use(middleware.SocketCredentials(authenticator))
		r.Get("/chat/{conversationID}", socketHandler.Chat)
		r.Get("/notifications", socketHandler.Notifications)
		r.Get("/posts/{postID}", socketHandler.Post)
	})

	return r, socketHandler
}
