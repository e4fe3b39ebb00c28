package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
)

type inbox struct {
	id  string
	mu  sync.Mutex
	got []string
}

func (i *inbox) ID() string { return i.id }

func (i *inbox) Deliver(msg []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.got = append(i.got, string(msg))
	return nil
}

func (i *inbox) messages() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.got...)
}

type env struct {
	ctx      context.Context
	queries  *db.Queries
	registry *realtime.MemoryRegistry
	follows  *FollowService
	posts    *PostService
	chat     *ChatService
	notes    *NotificationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.RunMigrations(sqlDB))

	registry := realtime.NewMemoryRegistry()
	emitter := events.NewEmitter(registry)
	queries := db.New(sqlDB)
	return &env{
		ctx:      context.Background(),
		queries:  queries,
		registry: registry,
		follows:  NewFollowService(sqlDB, emitter),
		posts:    NewPostService(sqlDB, emitter, 8),
		chat:     NewChatService(sqlDB, emitter),
		notes:    NewNotificationService(queries),
	}
}

func (e *env) user(t *testing.T, name string) auth.Identity {
	t.Helper()
	u, err := e.queries.CreateUser(e.ctx, db.CreateUserParams{Username: name})
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Username: u.Username}
}

func (e *env) post(t *testing.T, author auth.Identity) db.Post {
	t.Helper()
	p, err := e.queries.CreatePost(e.ctx, db.CreatePostParams{AuthorID: author.ID, Title: "spring haul"})
	require.NoError(t, err)
	return p
}

func (e *env) listen(channel string) *inbox {
	in := &inbox{id: channel + "-listener"}
	e.registry.Join(channel, in)
	return in
}

func (e *env) records(t *testing.T, recipient auth.Identity) []db.NotificationWithActor {
	t.Helper()
	list, err := e.queries.ListNotificationsByRecipient(e.ctx, recipient.ID)
	require.NoError(t, err)
	return list
}

func TestVote_SelfUpvoteCreatesNoRecord(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice)
	pushes := e.listen(realtime.NotifyUserChannel(alice.ID))

	require.NoError(t, e.posts.Vote(e.ctx, alice, p.ID, 1))
	require.Empty(t, e.records(t, alice))
	require.Empty(t, pushes.messages())
}

func TestVote_DownvoteNeverNotifies(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	p := e.post(t, alice)

	require.NoError(t, e.posts.Vote(e.ctx, bob, p.ID, -1))
	require.NoError(t, e.posts.Vote(e.ctx, alice, p.ID, -1))
	require.Empty(t, e.records(t, alice))
}

func TestVote_UpvoteNotifiesOnce(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	p := e.post(t, alice)
	pushes := e.listen(realtime.NotifyUserChannel(alice.ID))

	req.NoError(e.posts.Vote(e.ctx, bob, p.ID, 1))
	req.NoError(e.posts.Vote(e.ctx, bob, p.ID, 1))
	req.Len(e.records(t, alice), 1, "repeating an upvote does not notify again")

	req.NoError(e.posts.Vote(e.ctx, bob, p.ID, -1))
	req.NoError(e.posts.Vote(e.ctx, bob, p.ID, 1))
	records := e.records(t, alice)
	req.Len(records, 2, "switching back from a downvote is a new upvote")
	req.Equal("vote", records[0].NotificationType)
	req.EqualValues(p.ID, records[0].PostID.Int64)

	req.Len(pushes.messages(), 2)
	req.JSONEq(`{"type":"new_notification","notification_type":"vote","actor_name":"bob"}`, pushes.messages()[0])
}

func TestVote_UnknownPostAndBadType(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice)

	require.ErrorIs(t, e.posts.Vote(e.ctx, alice, p.ID+100, 1), ErrNotFound)
	require.Error(t, e.posts.Vote(e.ctx, alice, p.ID, 0))
}

func TestComment_SelfCommentCreatesNoRecord(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice)
	viewers := e.listen(realtime.PostChannel(p.ID))

	_, err := e.posts.Comment(e.ctx, alice, p.ID, "first!", nil)
	req.NoError(err)
	req.Empty(e.records(t, alice))
	req.Len(viewers.messages(), 1, "viewers still see the comment")
}

func TestComment_OrderScenario(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	p := e.post(t, alice)
	viewers := e.listen(realtime.PostChannel(p.ID))
	alicePushes := e.listen(realtime.NotifyUserChannel(alice.ID))
	bobPushes := e.listen(realtime.NotifyUserChannel(bob.ID))

	top, err := e.posts.Comment(e.ctx, bob, p.ID, "love it", nil)
	req.NoError(err)

	records := e.records(t, alice)
	req.Len(records, 1)
	req.Equal(bob.ID, records[0].ActorID)
	req.Equal("comment", records[0].NotificationType)
	req.Len(viewers.messages(), 1)
	req.Len(alicePushes.messages(), 1)

	_, err = e.posts.Comment(e.ctx, bob, p.ID, "replying to myself", &top.ID)
	req.NoError(err)

	req.Len(e.records(t, alice), 1)
	req.Empty(e.records(t, bob), "self-reply is suppressed")
	req.Empty(bobPushes.messages())
	req.Len(viewers.messages(), 2, "the post room still gets the reply")

	var frame models.CommentFrame
	req.NoError(json.Unmarshal([]byte(viewers.messages()[1]), &frame))
	req.Equal("new_comment", frame.Type)
	req.Equal("replying to myself", frame.Comment.Content)
	req.Equal("bob", frame.Comment.Author.Username)
	req.NotNil(frame.Comment.Replies)
}

func TestComment_ReplyNotifiesParentAuthor(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	p := e.post(t, alice)

	top, err := e.posts.Comment(e.ctx, bob, p.ID, "nice", nil)
	req.NoError(err)
	_, err = e.posts.Comment(e.ctx, carol, p.ID, "agreed", &top.ID)
	req.NoError(err)

	bobRecords := e.records(t, bob)
	req.Len(bobRecords, 1)
	req.Equal("reply", bobRecords[0].NotificationType)
	req.Equal(carol.ID, bobRecords[0].ActorID)
	req.Len(e.records(t, alice), 1, "the post author only hears about the top-level comment")

	tree, err := e.posts.Comments(e.ctx, p.ID)
	req.NoError(err)
	req.Len(tree, 1)
	req.Len(tree[0].Replies, 1)
	req.Equal("agreed", tree[0].Replies[0].Content)
}

func TestComment_RejectsForeignParent(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	p1, p2 := e.post(t, alice), e.post(t, alice)
	viewers := e.listen(realtime.PostChannel(p2.ID))

	top, err := e.posts.Comment(e.ctx, bob, p1.ID, "on p1", nil)
	require.NoError(t, err)

	_, err = e.posts.Comment(e.ctx, bob, p2.ID, "wrong thread", &top.ID)
	require.ErrorIs(t, err, ErrInvalidParent)

	missing := top.ID + 100
	_, err = e.posts.Comment(e.ctx, bob, p2.ID, "ghost parent", &missing)
	require.ErrorIs(t, err, ErrNotFound)

	require.Empty(t, viewers.messages())
	require.Len(t, e.records(t, alice), 1)
}

func TestFollow_RepeatDoesNotRenotify(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	pushes := e.listen(realtime.NotifyUserChannel(alice.ID))

	created, err := e.follows.Follow(e.ctx, bob, alice.ID)
	req.NoError(err)
	req.True(created)

	created, err = e.follows.Follow(e.ctx, bob, alice.ID)
	req.NoError(err)
	req.False(created)

	req.Len(e.records(t, alice), 1)
	req.Len(pushes.messages(), 1)

	req.NoError(e.follows.Unfollow(e.ctx, bob, alice.ID))
	req.NoError(e.follows.Unfollow(e.ctx, bob, alice.ID))

	following, err := e.queries.IsFollowing(e.ctx, db.IsFollowingParams{FollowerID: bob.ID, FollowedID: alice.ID})
	req.NoError(err)
	req.False(following)
}

func TestFollow_Errors(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")

	_, err := e.follows.Follow(e.ctx, alice, alice.ID)
	require.ErrorIs(t, err, ErrSelfFollow)

	_, err = e.follows.Follow(e.ctx, alice, alice.ID+50)
	require.ErrorIs(t, err, ErrNotFound)
}

func newConversation(t *testing.T, e *env, members ...auth.Identity) int64 {
	t.Helper()
	conv, err := e.queries.CreateConversation(e.ctx)
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, e.queries.AddParticipant(e.ctx, db.AddParticipantParams{ConversationID: conv.ID, UserID: m.ID}))
	}
	return conv.ID
}

func TestChat_NonParticipantIsDropped(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	a, b, c := e.user(t, "a"), e.user(t, "b"), e.user(t, "c")
	convID := newConversation(t, e, a, b)
	room := e.listen(realtime.ChatChannel(convID))

	_, err := e.chat.SendMessage(e.ctx, c, convID, "let me in")
	req.ErrorIs(err, ErrNotParticipant)

	count, err := e.queries.CountMessages(e.ctx, convID)
	req.NoError(err)
	req.Zero(count)
	req.Empty(room.messages())
	req.Empty(e.records(t, a))
	req.Empty(e.records(t, b))
}

func TestChat_MessageFansOut(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	a, b, c := e.user(t, "a"), e.user(t, "b"), e.user(t, "c")
	convID := newConversation(t, e, a, b, c)
	room := e.listen(realtime.ChatChannel(convID))

	before, err := e.queries.GetConversationByID(e.ctx, convID)
	req.NoError(err)

	msg, err := e.chat.SendMessage(e.ctx, a, convID, "hello")
	req.NoError(err)
	req.Equal("hello", msg.Message)

	req.Len(room.messages(), 1)
	var frame models.ChatMessageFrame
	req.NoError(json.Unmarshal([]byte(room.messages()[0]), &frame))
	req.Equal("hello", frame.Message)
	req.Equal("a", frame.Sender)
	req.Nil(frame.Avatar)
	req.Equal(msg.CreatedAt, frame.CreatedAt)

	req.Empty(e.records(t, a))
	for _, other := range []auth.Identity{b, c} {
		records := e.records(t, other)
		req.Len(records, 1)
		req.Equal("message", records[0].NotificationType)
	}

	after, err := e.queries.GetConversationByID(e.ctx, convID)
	req.NoError(err)
	req.False(after.UpdatedAt.Before(before.UpdatedAt))

	ok, err := e.chat.IsParticipant(e.ctx, convID, c.ID)
	req.NoError(err)
	req.True(ok)
}

func TestNotifications_RoundTrip(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	p := e.post(t, alice)

	_, err := e.follows.Follow(e.ctx, bob, alice.ID)
	req.NoError(err)
	req.NoError(e.posts.Vote(e.ctx, bob, p.ID, 1))

	list, err := e.notes.List(e.ctx, alice.ID)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal("vote", list[0].NotificationType)
	req.Equal("bob", list[0].Actor.Username)
	req.NotNil(list[0].PostID)
	req.Nil(list[1].PostID)
	for _, n := range list {
		req.False(n.IsRead)
	}

	unread, err := e.notes.CountUnread(e.ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(2, unread)

	req.NoError(e.notes.MarkRead(e.ctx, alice.ID, list[1].ID))
	req.NoError(e.notes.MarkRead(e.ctx, alice.ID, list[1].ID), "already read is fine")
	req.ErrorIs(e.notes.MarkRead(e.ctx, bob.ID, list[0].ID), ErrNotFound)

	changed, err := e.notes.MarkAllRead(e.ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(1, changed)

	changed, err = e.notes.MarkAllRead(e.ctx, alice.ID)
	req.NoError(err)
	req.Zero(changed)

	unread, err = e.notes.CountUnread(e.ctx, alice.ID)
	req.NoError(err)
	req.Zero(unread)
}

func TestNotifications_EmptyListIsNotNil(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")

	list, err := e.notes.List(e.ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}
