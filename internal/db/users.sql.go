package db

import (
	"context"
	"database/sql"
)

const createUser = `
INSERT INTO users (username, avatar, created_at)
VALUES (?, ?, ?)
RETURNING id, username, avatar, created_at
`

type CreateUserParams struct {
	Username string
	Avatar   sql.NullString
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Username, arg.Avatar, toMicros(now()))
	return scanUser(row)
}

const getUserByID = `
SELECT id, username, avatar, created_at FROM users WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var i User
	var createdAt int64
	err := row.Scan(&i.ID, &i.Username, &i.Avatar, &createdAt)
	i.CreatedAt = fromMicros(createdAt)
	return i, err
}

const createFollow = `
INSERT INTO follows (follower_id, followed_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (follower_id, followed_id) DO NOTHING
`

type CreateFollowParams struct {
	FollowerID int64
	FollowedID int64
}

// CreateFollow inserts the follow edge. RowsAffected is 0 when the edge
// already existed.
func (q *Queries) CreateFollow(ctx context.Context, arg CreateFollowParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, createFollow, arg.FollowerID, arg.FollowedID, toMicros(now()))
}

const deleteFollow = `
DELETE FROM follows WHERE follower_id = ? AND followed_id = ?
`

type DeleteFollowParams struct {
	FollowerID int64
	FollowedID int64
}

func (q *Queries) DeleteFollow(ctx context.Context, arg DeleteFollowParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteFollow, arg.FollowerID, arg.FollowedID)
}

const isFollowing = `
SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?)
`

type IsFollowingParams struct {
	FollowerID int64
	FollowedID int64
}

func (q *Queries) IsFollowing(ctx context.Context, arg IsFollowingParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, isFollowing, arg.FollowerID, arg.FollowedID).Scan(&exists)
	return exists, err
}
