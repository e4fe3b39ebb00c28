package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
)

// FollowService manages follow edges. Both verbs are idempotent: a repeated
// follow neither duplicates the edge nor notifies again.
type FollowService struct {
	sqlDB   *sql.DB
	emitter *events.Emitter
}

func NewFollowService(sqlDB *sql.DB, emitter *events.Emitter) *FollowService {
	return &FollowService{sqlDB: sqlDB, emitter: emitter}
}

// Follow makes actor follow targetID. It reports whether a new edge was
// created.
func (s *FollowService) Follow(ctx context.Context, actor auth.Identity, targetID int64) (bool, error) {
	if actor.ID == targetID {
		return false, ErrSelfFollow
	}

	var created bool
	err := database.RunInTx(ctx, s.sqlDB, func(tx *database.Tx) error {
		q := db.New(tx)
		if _, err := q.GetUserByID(ctx, targetID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}

		res, err := q.CreateFollow(ctx, db.CreateFollowParams{FollowerID: actor.ID, FollowedID: targetID})
		if err != nil {
			return fmt.Errorf("create follow: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("create follow: %w", err)
		}
		if n == 0 {
			return nil
		}
		created = true

		return s.emitter.Emit(ctx, tx, events.DomainEvent{
			Kind:        events.KindFollow,
			ActorID:     actor.ID,
			ActorName:   actor.Username,
			RecipientID: targetID,
		})
	})
	if err != nil {
		return false, err
	}

	if created {
		slog.InfoContext(ctx, "user followed",
			slog.Int64("follower_id", actor.ID),
			slog.Int64("followed_id", targetID),
		)
	}
	return created, nil
}

// Unfollow removes the edge if present.
func (s *FollowService) Unfollow(ctx context.Context, actor auth.Identity, targetID int64) error {
	q := db.New(s.sqlDB)
	if _, err := q.DeleteFollow(ctx, db.DeleteFollowParams{FollowerID: actor.ID, FollowedID: targetID}); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}
