package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
)

// PostService handles comments and votes on posts.
type PostService struct {
	sqlDB           *sql.DB
	emitter         *events.Emitter
	commentMaxDepth int
}

func NewPostService(sqlDB *sql.DB, emitter *events.Emitter, commentMaxDepth int) *PostService {
	return &PostService{sqlDB: sqlDB, emitter: emitter, commentMaxDepth: commentMaxDepth}
}

func getPost(ctx context.Context, q *db.Queries, postID int64) (db.Post, error) {
	post, err := q.GetPostByID(ctx, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Post{}, ErrNotFound
	}
	if err != nil {
		return db.Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// Comment adds a comment, or a reply when parentID is set. The post author
// (or the parent comment's author for replies) is notified unless they wrote
// it, and every viewer of the post receives the comment live.
func (s *PostService) Comment(ctx context.Context, actor auth.Identity, postID int64, content string, parentID *int64) (models.CommentResponse, error) {
	var resp models.CommentResponse

	err := database.RunInTx(ctx, s.sqlDB, func(tx *database.Tx) error {
		q := db.New(tx)
		post, err := getPost(ctx, q, postID)
		if err != nil {
			return err
		}

		params := db.CreateCommentParams{PostID: postID, AuthorID: actor.ID, Content: content}
		notify := events.DomainEvent{
			Kind:        events.KindComment,
			ActorID:     actor.ID,
			ActorName:   actor.Username,
			RecipientID: post.AuthorID,
			PostID:      postID,
		}

		if parentID != nil {
			parent, err := q.GetCommentByID(ctx, *parentID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get parent comment: %w", err)
			}
			if parent.PostID != postID {
				return ErrInvalidParent
			}
			params.ParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			notify.Kind = events.KindReply
			notify.RecipientID = parent.AuthorID
		}

		comment, err := q.CreateComment(ctx, params)
		if err != nil {
			return fmt.Errorf("create comment: %w", err)
		}

		if err := s.emitter.Emit(ctx, tx, notify); err != nil {
			return err
		}

		resp = models.CommentFromRow(db.CommentWithAuthor{
			Comment:        comment,
			AuthorUsername: actor.Username,
			AuthorAvatar:   nullString(actor.Avatar),
		})
		return s.emitter.Emit(ctx, tx, events.DomainEvent{
			Kind:    events.KindBroadcast,
			ActorID: actor.ID,
			PostID:  postID,
			Channel: realtime.PostChannel(postID),
			Payload: models.CommentFrame{Type: models.FrameNewComment, Comment: resp},
		})
	})
	if err != nil {
		return models.CommentResponse{}, err
	}
	return resp, nil
}

// Comments returns the post's comments as a reply tree.
func (s *PostService) Comments(ctx context.Context, postID int64) ([]models.CommentResponse, error) {
	q := db.New(s.sqlDB)
	if _, err := getPost(ctx, q, postID); err != nil {
		return nil, err
	}
	rows, err := q.ListCommentsByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return models.BuildCommentTree(rows, s.commentMaxDepth), nil
}

// Vote records actor's vote on a post. The author is notified when the
// result is an upvote that did not exist before; downvotes and repeated
// upvotes never notify.
func (s *PostService) Vote(ctx context.Context, actor auth.Identity, postID, voteType int64) error {
	if voteType != 1 && voteType != -1 {
		return fmt.Errorf("invalid vote type %d", voteType)
	}

	return database.RunInTx(ctx, s.sqlDB, func(tx *database.Tx) error {
		q := db.New(tx)
		post, err := getPost(ctx, q, postID)
		if err != nil {
			return err
		}

		wasUpvote := false
		prev, err := q.GetVote(ctx, db.GetVoteParams{PostID: postID, UserID: actor.ID})
		switch {
		case err == nil:
			wasUpvote = prev.VoteType == 1
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("get vote: %w", err)
		}

		if err := q.UpsertVote(ctx, db.UpsertVoteParams{PostID: postID, UserID: actor.ID, VoteType: voteType}); err != nil {
			return fmt.Errorf("save vote: %w", err)
		}

		if voteType != 1 || wasUpvote {
			return nil
		}
		return s.emitter.Emit(ctx, tx, events.DomainEvent{
			Kind:        events.KindVote,
			ActorID:     actor.ID,
			ActorName:   actor.Username,
			RecipientID: post.AuthorID,
			PostID:      postID,
		})
	})
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
