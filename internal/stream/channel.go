// Package stream pushes a session's broadcast events to one remote viewer.
//
// A Channel moves through Connecting, Open and Closed exactly once. While
// Open it holds a hub subscription; every exit path releases it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/broadcast"
)

// DefaultKeepAlive is the interval between keep-alive frames.
const DefaultKeepAlive = 30 * time.Second

var (
	// ErrDropped is returned by Run when the hub evicted a subscriber that
	// could not keep up. The viewer should reconnect and refetch records.
	ErrDropped = errors.New("stream: dropped by hub")
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("stream: channel already started")
)

// Sink writes frames to the remote end of one connection.
type Sink interface {
	Send(ev broadcast.Event) error
	KeepAlive() error
}

// Subscriber is the part of the hub a channel needs.
type Subscriber interface {
	Subscribe(sessionID string) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// State is a channel's lifecycle position.
type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Opts configures a Channel.
type Opts struct {
	KeepAlive time.Duration
	Logger    logrus.FieldLogger
}

// Channel relays one session's events to one sink.
type Channel struct {
	hub       Subscriber
	sessionID string
	sink      Sink
	keepAlive time.Duration
	log       logrus.FieldLogger

	state     atomic.Int32
	closing   chan struct{}
	closeOnce sync.Once
}

// New returns a Connecting channel. Nothing is registered until Run.
func New(hub Subscriber, sessionID string, sink Sink, opts Opts) *Channel {
	c := &Channel{
		hub:       hub,
		sessionID: sessionID,
		sink:      sink,
		keepAlive: opts.KeepAlive,
		log:       opts.Logger,
		closing:   make(chan struct{}),
	}
	if c.keepAlive <= 0 {
		c.keepAlive = DefaultKeepAlive
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	c.log = c.log.WithField("session-id", sessionID)
	return c
}

// State reports the channel's current lifecycle position.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Close asks a running channel to stop. It is safe to call at any time and
// more than once; a channel closed before Run never opens.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// Run opens the channel and relays events until ctx is cancelled, Close is
// called, the sink fails, or the hub drops the subscriber. It returns nil
// for the first two.
func (c *Channel) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Connecting), int32(Open)) {
		return ErrAlreadyStarted
	}
	defer c.state.Store(int32(Closed))

	select {
	case <-c.closing:
		return nil
	case <-ctx.Done():
		return nil
	default:
	}

	sub := c.hub.Subscribe(c.sessionID)
	defer c.hub.Unsubscribe(sub)

	c.log.Debug("stream opened")
	defer c.log.Debug("stream closed")

	if err := c.sink.Send(broadcast.Connected()); err != nil {
		return fmt.Errorf("stream: send connected: %w", err)
	}

	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closing:
			return nil
		case <-sub.Done():
			c.log.Warn("stream dropped by hub")
			return ErrDropped
		case ev := <-sub.Events():
			if err := c.sink.Send(ev); err != nil {
				return fmt.Errorf("stream: send %s: %w", ev.Type, err)
			}
		case <-ticker.C:
			if err := c.sink.KeepAlive(); err != nil {
				return fmt.Errorf("stream: keep-alive: %w", err)
			}
		}
	}
}
