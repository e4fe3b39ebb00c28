// Package events turns committed writes into notification records and
// real-time pushes.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
)

type Kind string

const (
	KindFollow  Kind = models.KindFollow
	KindComment Kind = models.KindComment
	KindReply   Kind = models.KindReply
	KindVote    Kind = models.KindVote
	KindMessage Kind = models.KindMessage
	// KindBroadcast events are pushed to Channel as-is and never stored.
	KindBroadcast Kind = "broadcast"
)

// Notifies reports whether events of kind k produce a notification record.
func (k Kind) Notifies() bool {
	switch k {
	case KindFollow, KindComment, KindReply, KindVote, KindMessage:
		return true
	}
	return false
}

// DomainEvent describes one business occurrence. Notifying kinds are
// addressed to RecipientID; KindBroadcast events carry their own Channel and
// Payload.
type DomainEvent struct {
	Kind        Kind
	ActorID     int64
	ActorName   string
	RecipientID int64
	PostID      int64
	Channel     string
	Payload     any
	OccurredAt  time.Time
}

// Emitter writes notification records inside the caller's transaction and
// schedules the matching pushes for after commit.
type Emitter struct {
	registry realtime.Registry
}

func NewEmitter(registry realtime.Registry) *Emitter {
	return &Emitter{registry: registry}
}

// Emit records ev in tx. A notifying event whose recipient is the actor is
// dropped. The push is registered with tx.OnCommit, so nothing is delivered
// if the transaction rolls back. An error means the record could not be
// written and the caller should abort the transaction.
func (e *Emitter) Emit(ctx context.Context, tx *database.Tx, ev DomainEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if ev.Kind == KindBroadcast {
		if ev.Channel == "" {
			return fmt.Errorf("broadcast event without channel")
		}
		msg, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ev.Channel, err)
		}
		e.schedule(tx, ev.Channel, msg)
		return nil
	}

	if !ev.Kind.Notifies() {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.RecipientID == 0 || ev.RecipientID == ev.ActorID {
		return nil
	}

	params := db.CreateNotificationParams{
		RecipientID:      ev.RecipientID,
		ActorID:          ev.ActorID,
		NotificationType: string(ev.Kind),
	}
	if ev.PostID != 0 {
		params.PostID = sql.NullInt64{Int64: ev.PostID, Valid: true}
	}
	if _, err := db.New(tx).CreateNotification(ctx, params); err != nil {
		return fmt.Errorf("create %s notification: %w", ev.Kind, err)
	}

	msg, err := json.Marshal(models.NotificationFrame{
		Type:             models.FrameNewNotification,
		NotificationType: string(ev.Kind),
		ActorName:        ev.ActorName,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	e.schedule(tx, realtime.NotifyUserChannel(ev.RecipientID), msg)
	return nil
}

func (e *Emitter) schedule(tx *database.Tx, channel string, msg []byte) {
	tx.OnCommit(func(ctx context.Context) {
		if err := e.registry.Broadcast(ctx, channel, msg); err != nil {
			slog.WarnContext(ctx, "broadcast failed",
				slog.String("channel", channel),
				slog.Any("error", err),
			)
		}
	})
}
