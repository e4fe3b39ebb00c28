package db

import (
	"context"
)

const createConversation = `
INSERT INTO conversations (updated_at) VALUES (?)
RETURNING id, updated_at
`

func (q *Queries) CreateConversation(ctx context.Context) (Conversation, error) {
	var i Conversation
	var updatedAt int64
	err := q.db.QueryRowContext(ctx, createConversation, toMicros(now())).Scan(&i.ID, &updatedAt)
	i.UpdatedAt = fromMicros(updatedAt)
	return i, err
}

const getConversationByID = `
SELECT id, updated_at FROM conversations WHERE id = ?
`

func (q *Queries) GetConversationByID(ctx context.Context, id int64) (Conversation, error) {
	var i Conversation
	var updatedAt int64
	err := q.db.QueryRowContext(ctx, getConversationByID, id).Scan(&i.ID, &updatedAt)
	i.UpdatedAt = fromMicros(updatedAt)
	return i, err
}

const addParticipant = `
INSERT INTO conversation_participants (conversation_id, user_id)
VALUES (?, ?)
ON CONFLICT (conversation_id, user_id) DO NOTHING
`

type AddParticipantParams struct {
	ConversationID int64
	UserID         int64
}

func (q *Queries) AddParticipant(ctx context.Context, arg AddParticipantParams) error {
	_, err := q.db.ExecContext(ctx, addParticipant, arg.ConversationID, arg.UserID)
	return err
}

const isParticipant = `
SELECT EXISTS (
    SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?
)
`

type IsParticipantParams struct {
	ConversationID int64
	UserID         int64
}

func (q *Queries) IsParticipant(ctx context.Context, arg IsParticipantParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, isParticipant, arg.ConversationID, arg.UserID).Scan(&exists)
	return exists, err
}

const listParticipantIDs = `
SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id
`

func (q *Queries) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listParticipantIDs, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchConversation = `
UPDATE conversations SET updated_at = ? WHERE id = ?
`

func (q *Queries) TouchConversation(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, touchConversation, toMicros(now()), id)
	return err
}

const createMessage = `
INSERT INTO messages (conversation_id, sender_id, content, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, conversation_id, sender_id, content, created_at
`

type CreateMessageParams struct {
	ConversationID int64
	SenderID       int64
	Content        string
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRowContext(ctx, createMessage, arg.ConversationID, arg.SenderID, arg.Content, toMicros(now()))
	var i Message
	var createdAt int64
	err := row.Scan(&i.ID, &i.ConversationID, &i.SenderID, &i.Content, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const countMessages = `
SELECT COUNT(*) FROM messages WHERE conversation_id = ?
`

func (q *Queries) CountMessages(ctx context.Context, conversationID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMessages, conversationID).Scan(&count)
	return count, err
}
