package db

import (
	"database/sql"
	"time"
)

type User struct {
	ID        int64
	Username  string
	Avatar    sql.NullString
	CreatedAt time.Time
}

type Post struct {
	ID        int64
	AuthorID  int64
	Title     string
	CreatedAt time.Time
}

type Comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	ParentID  sql.NullInt64
	Content   string
	CreatedAt time.Time
}

type CommentWithAuthor struct {
	Comment
	AuthorUsername string
	AuthorAvatar   sql.NullString
}

type Vote struct {
	PostID   int64
	UserID   int64
	VoteType int64
}

type Conversation struct {
	ID        int64
	UpdatedAt time.Time
}

type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
}

type Notification struct {
	ID               int64
	RecipientID      int64
	ActorID          int64
	NotificationType string
	PostID           sql.NullInt64
	IsRead           bool
	CreatedAt        time.Time
}

type NotificationWithActor struct {
	Notification
	ActorUsername string
	ActorAvatar   sql.NullString
}
