package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/events"
	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
)

// ChatService persists chat messages and fans them out to the conversation
// room and to the other participants' notification channels.
type ChatService struct {
	sqlDB   *sql.DB
	emitter *events.Emitter
}

func NewChatService(sqlDB *sql.DB, emitter *events.Emitter) *ChatService {
	return &ChatService{sqlDB: sqlDB, emitter: emitter}
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	ok, err := db.New(s.sqlDB).IsParticipant(ctx, db.IsParticipantParams{ConversationID: conversationID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// SendMessage stores a message from sender. Membership is checked inside the
// write transaction; a non-participant gets ErrNotParticipant and nothing is
// stored or pushed.
func (s *ChatService) SendMessage(ctx context.Context, sender auth.Identity, conversationID int64, content string) (models.MessageResponse, error) {
	var resp models.MessageResponse

	err := database.RunInTx(ctx, s.sqlDB, func(tx *database.Tx) error {
		q := db.New(tx)
		ok, err := q.IsParticipant(ctx, db.IsParticipantParams{ConversationID: conversationID, UserID: sender.ID})
		if err != nil {
			return fmt.Errorf("check participant: %w", err)
		}
		if !ok {
			return ErrNotParticipant
		}

		msg, err := q.CreateMessage(ctx, db.CreateMessageParams{
			ConversationID: conversationID,
			SenderID:       sender.ID,
			Content:        content,
		})
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := q.TouchConversation(ctx, conversationID); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}

		participants, err := q.ListParticipantIDs(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}

		createdAt := models.FormatTime(msg.CreatedAt)
		if err := s.emitter.Emit(ctx, tx, events.DomainEvent{
			Kind:    events.KindBroadcast,
			ActorID: sender.ID,
			Channel: realtime.ChatChannel(conversationID),
			Payload: models.ChatMessageFrame{
				Message:   msg.Content,
				Sender:    sender.Username,
				Avatar:    sender.Avatar,
				CreatedAt: createdAt,
			},
		}); err != nil {
			return err
		}

		for _, recipient := range lo.Without(participants, sender.ID) {
			if err := s.emitter.Emit(ctx, tx, events.DomainEvent{
				Kind:        events.KindMessage,
				ActorID:     sender.ID,
				ActorName:   sender.Username,
				RecipientID: recipient,
			}); err != nil {
				return err
			}
		}

		resp = models.MessageResponse{
			ID:             msg.ID,
			ConversationID: conversationID,
			Message:        msg.Content,
			Sender:         sender.Username,
			CreatedAt:      createdAt,
		}
		return nil
	})
	if err != nil {
		return models.MessageResponse{}, err
	}

	slog.DebugContext(ctx, "chat message stored",
		slog.Int64("conversation_id", conversationID),
		slog.Int64("message_id", resp.ID),
	)
	return resp, nil
}
