package services

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/models"
)

// NotificationService reads and updates a recipient's notifications.
type NotificationService struct {
	queries *db.Queries
}

func NewNotificationService(queries *db.Queries) *NotificationService {
	return &NotificationService{queries: queries}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID int64) ([]models.NotificationResponse, error) {
	rows, err := s.queries.ListNotificationsByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return lo.Map(rows, func(n db.NotificationWithActor, _ int) models.NotificationResponse {
		resp := models.NotificationResponse{
			ID:               n.ID,
			NotificationType: n.NotificationType,
			Actor: models.UserResponse{
				ID:       n.ActorID,
				Username: n.ActorUsername,
			},
			IsRead:    n.IsRead,
			CreatedAt: models.FormatTime(n.CreatedAt),
		}
		if n.ActorAvatar.Valid {
			resp.Actor.Avatar = lo.ToPtr(n.ActorAvatar.String)
		}
		if n.PostID.Valid {
			resp.PostID = lo.ToPtr(n.PostID.Int64)
		}
		return resp
	}), nil
}

func (s *NotificationService) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	n, err := s.queries.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips one notification to read. Marking an already-read
// notification succeeds; one that is missing or addressed to someone else
// returns ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID int64) error {
	res, err := s.queries.MarkNotificationRead(ctx, db.MarkNotificationReadParams{ID: notificationID, RecipientID: recipientID})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification of the recipient and returns
// how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	n, err := s.queries.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}
