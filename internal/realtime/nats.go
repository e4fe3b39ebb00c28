package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSRegistry keeps membership in a local MemoryRegistry and routes every
// Broadcast through NATS, so that all processes sharing the subject prefix
// deliver to their own local subscribers.
type NATSRegistry struct {
	local  *MemoryRegistry
	conn   *nats.Conn
	prefix string
	sub    *nats.Subscription
}

// ConnectNATS dials the NATS server at url with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("shopfeed-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// NewNATSRegistry subscribes to prefix.> on nc. The caller owns nc; Close
// only removes the subscription.
func NewNATSRegistry(nc *nats.Conn, prefix string) (*NATSRegistry, error) {
	r := &NATSRegistry{
		local:  NewMemoryRegistry(),
		conn:   nc,
		prefix: prefix,
	}
	sub, err := nc.Subscribe(prefix+".>", r.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s.>: %w", prefix, err)
	}
	// Make sure the server has registered interest before anyone publishes.
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush nats subscription: %w", err)
	}
	r.sub = sub
	return r, nil
}

func (r *NATSRegistry) handle(m *nats.Msg) {
	channel := strings.TrimPrefix(m.Subject, r.prefix+".")
	_ = r.local.Broadcast(context.Background(), channel, m.Data)
}

func (r *NATSRegistry) Join(channel string, sub Subscriber)  { r.local.Join(channel, sub) }
func (r *NATSRegistry) Leave(channel string, sub Subscriber) { r.local.Leave(channel, sub) }
func (r *NATSRegistry) Subscribers(channel string) int       { return r.local.Subscribers(channel) }
func (r *NATSRegistry) Size() int                            { return r.local.Size() }

// Broadcast publishes msg for every process, including this one. Local
// delivery happens asynchronously on the NATS subscription goroutine.
func (r *NATSRegistry) Broadcast(_ context.Context, channel string, msg []byte) error {
	if strings.ContainsAny(channel, ".*> \t") || channel == "" {
		return fmt.Errorf("invalid channel name %q", channel)
	}
	if err := r.conn.Publish(r.prefix+"."+channel, msg); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Close stops receiving remote broadcasts.
func (r *NATSRegistry) Close() error {
	return r.sub.Unsubscribe()
}
