package db

import (
	"context"
	"database/sql"
)

const createNotification = `
INSERT INTO notifications (recipient_id, actor_id, notification_type, post_id, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, recipient_id, actor_id, notification_type, post_id, is_read, created_at
`

type CreateNotificationParams struct {
	RecipientID      int64
	ActorID          int64
	NotificationType string
	PostID           sql.NullInt64
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRowContext(ctx, createNotification,
		arg.RecipientID, arg.ActorID, arg.NotificationType, arg.PostID, toMicros(now()))
	var i Notification
	var createdAt int64
	err := row.Scan(&i.ID, &i.RecipientID, &i.ActorID, &i.NotificationType, &i.PostID, &i.IsRead, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const listNotificationsByRecipient = `
SELECT n.id, n.recipient_id, n.actor_id, n.notification_type, n.post_id, n.is_read, n.created_at,
       u.username, u.avatar
FROM notifications n
JOIN users u ON u.id = n.actor_id
WHERE n.recipient_id = ?
ORDER BY n.created_at DESC, n.id DESC
`

func (q *Queries) ListNotificationsByRecipient(ctx context.Context, recipientID int64) ([]NotificationWithActor, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsByRecipient, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NotificationWithActor
	for rows.Next() {
		var i NotificationWithActor
		var createdAt int64
		if err := rows.Scan(
			&i.ID, &i.RecipientID, &i.ActorID, &i.NotificationType, &i.PostID, &i.IsRead, &createdAt,
			&i.ActorUsername, &i.ActorAvatar,
		); err != nil {
			return nil, err
		}
		i.CreatedAt = fromMicros(createdAt)
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnreadNotifications = `
SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0
`

func (q *Queries) CountUnreadNotifications(ctx context.Context, recipientID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnreadNotifications, recipientID).Scan(&count)
	return count, err
}

const countNotifications = `
SELECT COUNT(*) FROM notifications WHERE recipient_id = ?
`

func (q *Queries) CountNotifications(ctx context.Context, recipientID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countNotifications, recipientID).Scan(&count)
	return count, err
}

const markNotificationRead = `
UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?
`

type MarkNotificationReadParams struct {
	ID          int64
	RecipientID int64
}

// MarkNotificationRead flips the read flag. RowsAffected is 0 when the
// notification does not exist or belongs to another recipient.
func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, markNotificationRead, arg.ID, arg.RecipientID)
}

const markAllNotificationsRead = `
UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0
`

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, recipientID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markAllNotificationsRead, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
