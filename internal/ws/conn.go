package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/realtime"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before the connection is
	// considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192
)

// ErrSendBufferFull is returned by Deliver when the client is not draining
// its outbound queue. The connection is closed as a side effect.
var ErrSendBufferFull = errors.New("send buffer full")

// State is the lifecycle position of a connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one accepted WebSocket. It implements realtime.Subscriber.
//
// channels is only touched by the goroutine serving the connection; other
// goroutines reach a Conn only through Deliver and close.
type Conn struct {
	id       string
	ws       *websocket.Conn
	registry realtime.Registry
	identity *auth.Identity

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32

	channels []string
}

func newConn(wsConn *websocket.Conn, registry realtime.Registry, identity *auth.Identity, sendBuffer int) *Conn {
	c := &Conn{
		id:       uuid.NewString(),
		ws:       wsConn,
		registry: registry,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	if identity != nil {
		c.setState(StateAuthenticated)
	}
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Deliver queues msg for the write pump without blocking. A closed
// connection returns realtime.ErrSubscriberGone; a full queue closes the
// connection and returns ErrSendBufferFull.
func (c *Conn) Deliver(msg []byte) error {
	select {
	case <-c.done:
		return realtime.ErrSubscriberGone
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.close(websocket.CloseTryAgainLater, "slow consumer")
		return ErrSendBufferFull
	}
}

func (c *Conn) join(channel string) {
	c.registry.Join(channel, c)
	c.channels = append(c.channels, channel)
	c.setState(StateSubscribed)
}

// close stops both pumps. Safe to call from any goroutine, any number of
// times.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

// shutdown leaves every joined channel and closes the socket. It runs on
// every exit path of the serving goroutine.
func (c *Conn) shutdown(ctx context.Context) {
	for _, ch := range c.channels {
		c.registry.Leave(ch, c)
	}
	left := len(c.channels)
	c.channels = nil
	c.close(websocket.CloseNormalClosure, "")
	c.setState(StateClosed)

	slog.DebugContext(ctx, "socket closed", slog.String("conn_id", c.id), slog.Int("channels_left", left))
}

// writePump forwards queued messages to the socket and sends pings. It exits
// on the first write error or once the connection is closed.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the connection fails, passing data frames to
// onMessage when it is non-nil. Blocks until the connection closes.
func (c *Conn) readPump(onMessage func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}
