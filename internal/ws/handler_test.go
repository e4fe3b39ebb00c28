package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
	"github.com/shopfeed/backend/internal/middleware"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
	"github.com/shopfeed/backend/internal/services"
)

type testServer struct {
	srv      *httptest.Server
	handler  *Handler
	registry *realtime.MemoryRegistry
	queries  *db.Queries
	auth     *auth.Authenticator
	posts    *services.PostService
	follows  *services.FollowService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "ws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.RunMigrations(sqlDB))

	queries := db.New(sqlDB)
	registry := realtime.NewMemoryRegistry()
	emitter := events.NewEmitter(registry)
	authenticator := auth.NewAuthenticator("ws-secret", time.Hour, queries)
	chat := services.NewChatService(sqlDB, emitter)
	handler := NewHandler(registry, chat, Options{SendBuffer: 8, MessagesPerSecond: 50})

	r := chi.NewRouter()
	r.Route("/ws", func(r chi.Router) {
		r.Use(middleware.SocketCredentials(authenticator))
		r.Get("/chat/{conversationID}", handler.Chat)
		r.Get("/notifications", handler.Notifications)
		r.Get("/posts/{postID}", handler.Post)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		handler.CloseAll()
		srv.Close()
	})

	return &testServer{
		srv:      srv,
		handler:  handler,
		registry: registry,
		queries:  queries,
		auth:     authenticator,
		posts:    services.NewPostService(sqlDB, emitter, 8),
		follows:  services.NewFollowService(sqlDB, emitter),
	}
}

func (s *testServer) user(t *testing.T, name string) (auth.Identity, string) {
	t.Helper()
	u, err := s.queries.CreateUser(context.Background(), db.CreateUserParams{Username: name})
	require.NoError(t, err)
	token, err := s.auth.GenerateToken(u.ID)
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Username: u.Username}, token
}

func (s *testServer) conversation(t *testing.T, members ...auth.Identity) int64 {
	t.Helper()
	ctx := context.Background()
	conv, err := s.queries.CreateConversation(ctx)
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, s.queries.AddParticipant(ctx, db.AddParticipantParams{ConversationID: conv.ID, UserID: m.ID}))
	}
	return conv.ID
}

func (s *testServer) url(path, token string) string {
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (s *testServer) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url(path, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) waitSubscribers(t *testing.T, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.registry.Subscribers(channel) == n
	}, 2*time.Second, 10*time.Millisecond, "channel %s", channel)
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func requireSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", data)
}

func TestHandler_RejectsUnauthenticatedUpgrade(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.user(t, "alice")
	convID := s.conversation(t, alice)

	paths := []string{"/ws/notifications", "/ws/chat/" + itoa(convID)}
	for _, path := range paths {
		for _, token := range []string{"", "garbage"} {
			_, resp, err := websocket.DefaultDialer.Dial(s.url(path, token), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		}
	}

	require.Zero(t, s.registry.Size())
	require.Zero(t, s.handler.Count())
}

func TestHandler_ChatRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice")
	bob, bobToken := s.user(t, "bob")
	convID := s.conversation(t, alice, bob)
	channel := realtime.ChatChannel(convID)

	aliceConn := s.dial(t, "/ws/chat/"+itoa(convID), aliceToken)
	bobConn := s.dial(t, "/ws/chat/"+itoa(convID), bobToken)
	s.waitSubscribers(t, channel, 2)

	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, aliceConn.WriteJSON(map[string]string{"message": ""}))
	require.NoError(t, aliceConn.WriteJSON(map[string]string{"message": "is this still available?"}))

	for _, conn := range []*websocket.Conn{bobConn, aliceConn} {
		var frame models.ChatMessageFrame
		readJSON(t, conn, &frame)
		require.Equal(t, "is this still available?", frame.Message)
		require.Equal(t, "alice", frame.Sender)
		require.Nil(t, frame.Avatar)
		_, err := time.Parse(time.RFC3339, frame.CreatedAt)
		require.NoError(t, err)
	}

	count, err := s.queries.CountMessages(context.Background(), convID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "malformed and empty frames are dropped")

	unread, err := s.queries.CountUnreadNotifications(context.Background(), bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}

func TestHandler_NonParticipantIsSilenced(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice")
	bob, _ := s.user(t, "bob")
	_, malloryToken := s.user(t, "mallory")
	convID := s.conversation(t, alice, bob)
	channel := realtime.ChatChannel(convID)

	aliceConn := s.dial(t, "/ws/chat/"+itoa(convID), aliceToken)
	malloryConn := s.dial(t, "/ws/chat/"+itoa(convID), malloryToken)
	s.waitSubscribers(t, channel, 1)
	require.Eventually(t, func() bool { return s.handler.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, malloryConn.WriteJSON(map[string]string{"message": "phish"}))
	requireSilent(t, aliceConn)

	count, err := s.queries.CountMessages(context.Background(), convID)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, 1, s.registry.Subscribers(channel))
}

func TestHandler_NotificationStream(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice")
	bob, _ := s.user(t, "bob")

	conn := s.dial(t, "/ws/notifications", aliceToken)
	s.waitSubscribers(t, realtime.NotifyUserChannel(alice.ID), 1)

	_, err := s.follows.Follow(context.Background(), bob, alice.ID)
	require.NoError(t, err)

	var frame models.NotificationFrame
	readJSON(t, conn, &frame)
	require.Equal(t, models.NotificationFrame{Type: "new_notification", NotificationType: "follow", ActorName: "bob"}, frame)
}

func TestHandler_AnonymousPostViewer(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.user(t, "alice")
	bob, _ := s.user(t, "bob")
	post, err := s.queries.CreatePost(context.Background(), db.CreatePostParams{AuthorID: alice.ID, Title: "vintage lamp"})
	require.NoError(t, err)

	viewer := s.dial(t, "/ws/posts/"+itoa(post.ID), "")
	s.waitSubscribers(t, realtime.PostChannel(post.ID), 1)

	// Inbound frames on a receive-only stream are ignored.
	require.NoError(t, viewer.WriteJSON(map[string]string{"message": "hello?"}))

	_, err = s.posts.Comment(context.Background(), bob, post.ID, "what year is it from?", nil)
	require.NoError(t, err)

	var frame models.CommentFrame
	readJSON(t, viewer, &frame)
	require.Equal(t, "new_comment", frame.Type)
	require.Equal(t, "what year is it from?", frame.Comment.Content)
	require.Equal(t, "bob", frame.Comment.Author.Username)
	require.NotNil(t, frame.Comment.Replies)
	require.Empty(t, frame.Comment.Replies)
}

func TestHandler_DisconnectLeavesEveryChannel(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice")
	bob, bobToken := s.user(t, "bob")
	convID := s.conversation(t, alice, bob)

	var conns []*websocket.Conn
	for i := 0; i < 5; i++ {
		conns = append(conns,
			s.dial(t, "/ws/chat/"+itoa(convID), aliceToken),
			s.dial(t, "/ws/notifications", bobToken),
			s.dial(t, "/ws/posts/1", ""),
		)
	}
	require.Eventually(t, func() bool { return s.registry.Size() == 15 }, 2*time.Second, 10*time.Millisecond)

	for _, c := range conns {
		require.NoError(t, c.Close())
	}

	require.Eventually(t, func() bool {
		return s.registry.Size() == 0 && s.handler.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, s.registry.Channels())
}

func TestHandler_CloseAll(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "alice")
	conn := s.dial(t, "/ws/notifications", token)
	require.Eventually(t, func() bool { return s.registry.Size() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.handler.CloseAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return s.registry.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsBadPathID(t *testing.T) {
	s := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(s.url("/ws/posts/abc", ""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
