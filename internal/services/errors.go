// Package services contains the write paths that change shopfeed state and
// the read paths the REST handlers serve.
package services

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrSelfFollow     = errors.New("cannot follow yourself")
	ErrInvalidParent  = errors.New("parent comment belongs to another post")
)
