// Package realtime maps channel names to the live connections subscribed to
// them and fans messages out to those connections.
//
// Two Registry implementations share one contract: MemoryRegistry for a
// single process and NATSRegistry for deployments where a connection on one
// process must receive broadcasts published by another.
package realtime

import (
	"context"
	"errors"
	"fmt"
)

// ErrSubscriberGone is returned by Subscriber.Deliver when the connection has
// already closed.
var ErrSubscriberGone = errors.New("subscriber gone")

// Subscriber is one live connection as seen by the registry.
type Subscriber interface {
	// ID is unique among live connections.
	ID() string
	// Deliver hands msg to the connection without blocking. An error means
	// the message was not accepted; the registry never retries.
	Deliver(msg []byte) error
}

// Registry is the shared channel membership index.
type Registry interface {
	// Join subscribes sub to channel. Joining twice has no further effect.
	Join(channel string, sub Subscriber)
	// Leave unsubscribes sub from channel. Leaving a channel sub is not in is a no-op.
	Leave(channel string, sub Subscriber)
	// Broadcast delivers msg to every subscriber of channel at the time of the
	// call. A failed delivery to one subscriber does not affect the others.
	Broadcast(ctx context.Context, channel string, msg []byte) error
	// Subscribers returns the number of local subscribers of channel.
	Subscribers(channel string) int
	// Size returns the total number of local memberships across all channels.
	Size() int
}

// ChatChannel names the broadcast group of a conversation.
func ChatChannel(conversationID int64) string {
	return fmt.Sprintf("chat_%d", conversationID)
}

// NotifyUserChannel names the private notification group of a user.
func NotifyUserChannel(userID int64) string {
	return fmt.Sprintf("notify_user_%d", userID)
}

// PostChannel names the live-comment group of a post.
func PostChannel(postID int64) string {
	return fmt.Sprintf("post_%d", postID)
}
