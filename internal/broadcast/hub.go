// Package broadcast fans record changes out to the live viewers of a session.
//
// Each session has its own topic with its own locks, so unrelated sessions
// never contend. Publishing to a topic is serialized and every subscriber has
// a bounded FIFO buffer, which gives each subscriber the events of its session
// in publish order. Delivery never blocks: a subscriber whose buffer is full
// is dropped from the registry and its Done channel closed.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber event buffer used when none is set.
const DefaultBuffer = 64

// Subscription is a handle to one registered sink. Events arrive on Events
// until Done is closed, either by Unsubscribe or because the hub dropped a
// subscriber that stopped draining.
type Subscription struct {
	id        uint64
	sessionID string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// SessionID is the session the subscription is bound to.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Events delivers the session's events in publish order.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription is no longer registered.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	if s.done == nil {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
}

// topic is the subscriber set of one session.
type topic struct {
	// pubMu serializes publishes; mu guards subs. Registration only takes mu,
	// so a publish in flight never stalls a new subscriber.
	pubMu sync.Mutex
	mu    sync.Mutex
	subs  map[uint64]*Subscription
	// dead is set when the last subscriber leaves; a dead topic takes no
	// new subscribers.
	dead bool
}

// Hub is an in-process registry of per-session subscribers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	nextID atomic.Uint64
	buffer int
	log    logrus.FieldLogger
}

// HubOpts holds parameters for creating a Hub.
type HubOpts struct {
	Buffer int // per-subscriber buffer, defaults to DefaultBuffer
	Logger logrus.FieldLogger
}

// NewHub creates an empty Hub.
func NewHub(opts HubOpts) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Hub{
		topics: make(map[string]*topic),
		buffer: opts.Buffer,
		log:    opts.Logger.WithField("component", "broadcast"),
	}
}

// Subscribe registers a new sink for sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		id:        h.nextID.Add(1),
		sessionID: sessionID,
		events:    make(chan Event, h.buffer),
		done:      make(chan struct{}),
	}

	for {
		t := h.topicFor(sessionID)
		t.mu.Lock()
		if t.dead {
			// Emptied by a concurrent remove; retire it and try again.
			t.mu.Unlock()
			h.retire(sessionID, t)
			continue
		}
		t.subs[sub.id] = sub
		t.mu.Unlock()
		break
	}

	h.log.WithField("session-id", sessionID).WithField("subscriber", sub.id).Debug("subscribed")
	return sub
}

// Unsubscribe removes sub from the registry and closes its Done channel. It
// is safe to call more than once, with nil, or with a handle this hub never
// issued; none of those affect other subscribers.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.remove(sub)
	sub.close()
}

// topicFor returns the live topic for sessionID, creating it when absent. The
// hub write lock is only taken to create.
func (h *Hub) topicFor(sessionID string) *topic {
	h.mu.RLock()
	t, ok := h.topics[sessionID]
	h.mu.RUnlock()
	if ok {
		return t
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok = h.topics[sessionID]; !ok {
		t = &topic{subs: make(map[uint64]*Subscription)}
		h.topics[sessionID] = t
	}
	return t
}

// retire drops t from the topic map if it is still the registered topic.
func (h *Hub) retire(sessionID string, t *topic) {
	h.mu.Lock()
	if h.topics[sessionID] == t {
		delete(h.topics, sessionID)
	}
	h.mu.Unlock()
}

// remove deletes sub from its topic. The topic is marked dead and retired
// once empty; the hub write lock is only taken for that. Hub and topic locks
// are never held together.
func (h *Hub) remove(sub *Subscription) bool {
	h.mu.RLock()
	t, ok := h.topics[sub.sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	t.mu.Lock()
	if t.subs[sub.id] != sub {
		t.mu.Unlock()
		return false
	}
	delete(t.subs, sub.id)
	empty := len(t.subs) == 0
	if empty {
		t.dead = true
	}
	t.mu.Unlock()

	if empty {
		h.retire(sub.sessionID, t)
	}
	return true
}

// Publish delivers ev to every subscriber currently registered for
// sessionID. It never blocks on a subscriber and never fails: a subscriber
// that cannot accept the event is dropped and logged.
func (h *Hub) Publish(sessionID string, ev Event) {
	h.mu.RLock()
	t, ok := h.topics[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		select {
		case <-sub.done:
			continue
		default:
		}
		select {
		case sub.events <- ev:
		default:
			if h.remove(sub) {
				h.log.WithField("session-id", sessionID).
					WithField("subscriber", sub.id).
					WithField("event", ev.Type).
					Warn("subscriber buffer full, dropping subscriber")
			}
			sub.close()
		}
	}
}

// SubscriberCount returns how many subscribers sessionID currently has.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	t, ok := h.topics[sessionID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Sessions returns how many sessions have at least one subscriber.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
