// Package models defines the JSON shapes exchanged over REST and WebSocket.
package models

import "time"

// TimestampLayout is used for every timestamp on the wire. Values are
// always rendered in UTC with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Socket frame types.
const (
	FrameNewNotification = "new_notification"
	FrameNewComment      = "new_comment"
)

// Notification kinds, as stored and as sent in notification_type.
const (
	KindFollow  = "follow"
	KindComment = "comment"
	KindReply   = "reply"
	KindVote    = "vote"
	KindMessage = "message"
)

// Chat
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type ChatMessageFrame struct {
	Message   string  `json:"message"`
	Sender    string  `json:"sender"`
	Avatar    *string `json:"avatar"`
	CreatedAt string  `json:"created_at"`
}

type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Message        string `json:"message"`
	Sender         string `json:"sender"`
	CreatedAt      string `json:"created_at"`
}

// Notifications
type NotificationFrame struct {
	Type             string `json:"type"`
	NotificationType string `json:"notification_type"`
	ActorName        string `json:"actor_name"`
}

type NotificationResponse struct {
	ID               int64        `json:"id"`
	NotificationType string       `json:"notification_type"`
	Actor            UserResponse `json:"actor"`
	PostID           *int64       `json:"post_id"`
	IsRead           bool         `json:"is_read"`
	CreatedAt        string       `json:"created_at"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type MarkReadResponse struct {
	Status  string `json:"status"`
	Updated int64  `json:"updated"`
}

// Posts and comments
type UserResponse struct {
	ID       int64   `json:"id,omitempty"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

type CommentResponse struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	CreatedAt string            `json:"created_at"`
	Author    UserResponse      `json:"author"`
	Replies   []CommentResponse `json:"replies"`
}

type CommentFrame struct {
	Type    string          `json:"type"`
	Comment CommentResponse `json:"comment"`
}

type CreateCommentRequest struct {
	Content  string `json:"content" validate:"required,max=5000"`
	ParentID *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
}

type VoteRequest struct {
	VoteType int64 `json:"vote_type" validate:"oneof=1 -1"`
}

type VoteResponse struct {
	PostID   int64 `json:"post_id"`
	VoteType int64 `json:"vote_type"`
}

// Follows
type FollowResponse struct {
	UserID    int64 `json:"user_id"`
	Following bool  `json:"following"`
}

// Common
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Subscriptions int    `json:"subscriptions"`
}
