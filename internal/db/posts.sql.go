package db

import (
	"context"
	"database/sql"
)

const createPost = `
INSERT INTO posts (author_id, title, created_at)
VALUES (?, ?, ?)
RETURNING id, author_id, title, created_at
`

type CreatePostParams struct {
	AuthorID int64
	Title    string
}

func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	row := q.db.QueryRowContext(ctx, createPost, arg.AuthorID, arg.Title, toMicros(now()))
	var i Post
	var createdAt int64
	err := row.Scan(&i.ID, &i.AuthorID, &i.Title, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const getPostByID = `
SELECT id, author_id, title, created_at FROM posts WHERE id = ?
`

func (q *Queries) GetPostByID(ctx context.Context, id int64) (Post, error) {
	row := q.db.QueryRowContext(ctx, getPostByID, id)
	var i Post
	var createdAt int64
	err := row.Scan(&i.ID, &i.AuthorID, &i.Title, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const createComment = `
INSERT INTO comments (post_id, author_id, parent_id, content, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, post_id, author_id, parent_id, content, created_at
`

type CreateCommentParams struct {
	PostID   int64
	AuthorID int64
	ParentID sql.NullInt64
	Content  string
}

func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) (Comment, error) {
	row := q.db.QueryRowContext(ctx, createComment, arg.PostID, arg.AuthorID, arg.ParentID, arg.Content, toMicros(now()))
	return scanComment(row)
}

const getCommentByID = `
SELECT id, post_id, author_id, parent_id, content, created_at FROM comments WHERE id = ?
`

func (q *Queries) GetCommentByID(ctx context.Context, id int64) (Comment, error) {
	row := q.db.QueryRowContext(ctx, getCommentByID, id)
	return scanComment(row)
}

func scanComment(row *sql.Row) (Comment, error) {
	var i Comment
	var createdAt int64
	err := row.Scan(&i.ID, &i.PostID, &i.AuthorID, &i.ParentID, &i.Content, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const listCommentsByPost = `
SELECT c.id, c.post_id, c.author_id, c.parent_id, c.content, c.created_at, u.username, u.avatar
FROM comments c
JOIN users u ON u.id = c.author_id
WHERE c.post_id = ?
ORDER BY c.created_at, c.id
`

func (q *Queries) ListCommentsByPost(ctx context.Context, postID int64) ([]CommentWithAuthor, error) {
	rows, err := q.db.QueryContext(ctx, listCommentsByPost, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CommentWithAuthor
	for rows.Next() {
		var i CommentWithAuthor
		var createdAt int64
		if err := rows.Scan(
			&i.ID, &i.PostID, &i.AuthorID, &i.ParentID, &i.Content, &createdAt,
			&i.AuthorUsername, &i.AuthorAvatar,
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

const getVote = `
SELECT post_id, user_id, vote_type FROM votes WHERE post_id = ? AND user_id = ?
`

type GetVoteParams struct {
	PostID int64
	UserID int64
}

func (q *Queries) GetVote(ctx context.Context, arg GetVoteParams) (Vote, error) {
	var i Vote
	err := q.db.QueryRowContext(ctx, getVote, arg.PostID, arg.UserID).Scan(&i.PostID, &i.UserID, &i.VoteType)
	return i, err
}

const upsertVote = `
INSERT INTO votes (post_id, user_id, vote_type)
VALUES (?, ?, ?)
ON CONFLICT (post_id, user_id) DO UPDATE SET vote_type = excluded.vote_type
`

type UpsertVoteParams struct {
	PostID   int64
	UserID   int64
	VoteType int64
}

func (q *Queries) UpsertVote(ctx context.Context, arg UpsertVoteParams) error {
	_, err := q.db.ExecContext(ctx, upsertVote, arg.PostID, arg.UserID, arg.VoteType)
	return err
}
