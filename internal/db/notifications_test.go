package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
)

func newQueries(t *testing.T) *db.Queries {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.RunMigrations(sqlDB))
	return db.New(sqlDB)
}

func mustUser(t *testing.T, q *db.Queries, name string) db.User {
	t.Helper()
	u, err := q.CreateUser(context.Background(), db.CreateUserParams{Username: name})
	require.NoError(t, err)
	return u
}

func TestNotifications_ReadStateRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	q := newQueries(t)
	alice := mustUser(t, q, "alice")
	bob := mustUser(t, q, "bob")

	first, err := q.CreateNotification(ctx, db.CreateNotificationParams{
		RecipientID: alice.ID, ActorID: bob.ID, NotificationType: "follow",
	})
	req.NoError(err)
	req.False(first.IsRead)
	req.False(first.PostID.Valid)

	second, err := q.CreateNotification(ctx, db.CreateNotificationParams{
		RecipientID: alice.ID, ActorID: bob.ID, NotificationType: "comment",
		PostID: sql.NullInt64{Int64: 42, Valid: true},
	})
	req.NoError(err)

	unread, err := q.CountUnreadNotifications(ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(2, unread)

	res, err := q.MarkNotificationRead(ctx, db.MarkNotificationReadParams{ID: first.ID, RecipientID: alice.ID})
	req.NoError(err)
	n, _ := res.RowsAffected()
	req.EqualValues(1, n)

	unread, err = q.CountUnreadNotifications(ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(1, unread)

	changed, err := q.MarkAllNotificationsRead(ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(1, changed, "already-read records are left alone")

	changed, err = q.MarkAllNotificationsRead(ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(0, changed)

	list, err := q.ListNotificationsByRecipient(ctx, alice.ID)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal(second.ID, list[0].ID, "newest first")
	req.Equal("bob", list[0].ActorUsername)
	for _, item := range list {
		req.True(item.IsRead)
	}
}

func TestNotifications_MarkReadIsRecipientScoped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	q := newQueries(t)
	alice := mustUser(t, q, "alice")
	bob := mustUser(t, q, "bob")

	n, err := q.CreateNotification(ctx, db.CreateNotificationParams{
		RecipientID: alice.ID, ActorID: bob.ID, NotificationType: "vote",
	})
	req.NoError(err)

	res, err := q.MarkNotificationRead(ctx, db.MarkNotificationReadParams{ID: n.ID, RecipientID: bob.ID})
	req.NoError(err)
	affected, _ := res.RowsAffected()
	req.Zero(affected)

	unread, err := q.CountUnreadNotifications(ctx, alice.ID)
	req.NoError(err)
	req.EqualValues(1, unread)
}

func TestNotifications_RejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	q := newQueries(t)
	alice := mustUser(t, q, "alice")

	_, err := q.CreateNotification(ctx, db.CreateNotificationParams{
		RecipientID: alice.ID, ActorID: alice.ID, NotificationType: "new_comment",
	})
	require.Error(t, err)
}

func TestFollows_CreateIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	q := newQueries(t)
	alice := mustUser(t, q, "alice")
	bob := mustUser(t, q, "bob")

	params := db.CreateFollowParams{FollowerID: bob.ID, FollowedID: alice.ID}
	res, err := q.CreateFollow(ctx, params)
	req.NoError(err)
	n, _ := res.RowsAffected()
	req.EqualValues(1, n)

	res, err = q.CreateFollow(ctx, params)
	req.NoError(err)
	n, _ = res.RowsAffected()
	req.Zero(n)

	following, err := q.IsFollowing(ctx, db.IsFollowingParams{FollowerID: bob.ID, FollowedID: alice.ID})
	req.NoError(err)
	req.True(following)
}

func TestConversations_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	q := newQueries(t)
	alice := mustUser(t, q, "alice")
	bob := mustUser(t, q, "bob")
	carol := mustUser(t, q, "carol")

	conv, err := q.CreateConversation(ctx)
	req.NoError(err)
	for _, u := range []db.User{alice, bob, alice} {
		req.NoError(q.AddParticipant(ctx, db.AddParticipantParams{ConversationID: conv.ID, UserID: u.ID}))
	}

	ids, err := q.ListParticipantIDs(ctx, conv.ID)
	req.NoError(err)
	req.Equal([]int64{alice.ID, bob.ID}, ids)

	ok, err := q.IsParticipant(ctx, db.IsParticipantParams{ConversationID: conv.ID, UserID: carol.ID})
	req.NoError(err)
	req.False(ok)
}
