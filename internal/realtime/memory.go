package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/shopfeed/backend/internal/logging"
)

// MemoryRegistry is an in-process Registry. The index is guarded by a single
// RWMutex; Broadcast copies the subscriber set under the read lock and
// delivers outside it, so a slow subscriber never blocks Join or Leave.
type MemoryRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[string]Subscriber
}

// NewMemoryRegistry creates a ready-to-use MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		channels: make(map[string]map[string]Subscriber),
	}
}

func (r *MemoryRegistry) Join(channel string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]Subscriber)
		r.channels[channel] = subs
	}
	subs[sub.ID()] = sub
}

// Leave removes sub from channel and drops the channel once it is empty.
func (r *MemoryRegistry) Leave(channel string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(subs, sub.ID())
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
}

// Broadcast never returns an error; failed deliveries are logged.
func (r *MemoryRegistry) Broadcast(ctx context.Context, channel string, msg []byte) error {
	targets := r.snapshot(channel)
	for _, sub := range targets {
		if err := sub.Deliver(msg); err != nil {
			logging.LogDeliveryFailure(ctx, channel, sub.ID(), err)
		}
	}
	if len(targets) > 0 {
		slog.DebugContext(ctx, "broadcast", slog.String("channel", channel), slog.Int("subscribers", len(targets)))
	}
	return nil
}

func (r *MemoryRegistry) snapshot(channel string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.channels[channel])
}

func (r *MemoryRegistry) Subscribers(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

func (r *MemoryRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.channels), func(subs map[string]Subscriber) int {
		return len(subs)
	})
}

// Channels returns the names of channels that currently have subscribers.
func (r *MemoryRegistry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.channels)
}
