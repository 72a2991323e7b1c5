package broadcast

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/netlog/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestHub(buffer int) *Hub {
	return NewHub(HubOpts{Buffer: buffer, Logger: quietLogger()})
}

// recv waits briefly for the next event on sub.
func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

// assertNoEvent checks that nothing is pending on sub.
func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNewHub_Defaults(t *testing.T) {
	h := NewHub(HubOpts{})
	assert.Equal(t, DefaultBuffer, h.buffer)
	assert.NotNil(t, h.log)
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	h := newTestHub(8)
	sub := h.Subscribe("s1")
	defer h.Unsubscribe(sub)

	h.Publish("s1", RecordDeleted("r1"))

	ev := recv(t, sub)
	assert.Equal(t, TypeRecordDeleted, ev.Type)
	assert.Equal(t, "r1", ev.RecordID)
	assert.Equal(t, "s1", sub.SessionID())
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := newTestHub(8)
	h.Publish("nobody", RecordDeleted("r1"))
	assert.Equal(t, 0, h.Sessions())
}

func TestPublish_NoCrossSessionLeakage(t *testing.T) {
	h := newTestHub(8)
	a := h.Subscribe("A")
	b := h.Subscribe("B")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("A", RecordDeleted("ra"))

	assert.Equal(t, "ra", recv(t, a).RecordID)
	assertNoEvent(t, b)
}

func TestPublish_FIFOPerSubscriber(t *testing.T) {
	const n = 50
	h := newTestHub(n)
	subs := []*Subscription{h.Subscribe("s1"), h.Subscribe("s1"), h.Subscribe("s1")}

	for i := 0; i < n; i++ {
		h.Publish("s1", RecordDeleted(fmt.Sprintf("r%02d", i)))
	}

	for _, sub := range subs {
		for i := 0; i < n; i++ {
			ev := recv(t, sub)
			require.Equal(t, fmt.Sprintf("r%02d", i), ev.RecordID)
		}
		h.Unsubscribe(sub)
	}
}

func TestPublish_ConcurrentPublishersAgreeOnOrder(t *testing.T) {
	const perWriter = 100
	h := newTestHub(4 * perWriter)
	s1 := h.Subscribe("s1")
	s2 := h.Subscribe("s1")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				h.Publish("s1", RecordDeleted(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < 4*perWriter; i++ {
		e1, e2 := recv(t, s1), recv(t, s2)
		require.Equal(t, e1.RecordID, e2.RecordID, "subscribers diverged at event %d", i)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := newTestHub(8)
	keep := h.Subscribe("s1")
	gone := h.Subscribe("s1")

	h.Unsubscribe(gone)
	h.Unsubscribe(gone)
	h.Unsubscribe(nil)
	h.Unsubscribe(&Subscription{sessionID: "s1"})
	h.Unsubscribe(&Subscription{})

	assert.Equal(t, 1, h.SubscriberCount("s1"))
	select {
	case <-gone.Done():
	default:
		t.Fatal("Done not closed after Unsubscribe")
	}

	h.Publish("s1", RecordDeleted("r1"))
	assert.Equal(t, "r1", recv(t, keep).RecordID)
	assertNoEvent(t, gone)
}

func TestUnsubscribe_ForeignHandle(t *testing.T) {
	h1 := newTestHub(8)
	h2 := newTestHub(8)
	sub := h1.Subscribe("s1")
	other := h2.Subscribe("s1")

	h2.Unsubscribe(sub)

	assert.Equal(t, 1, h2.SubscriberCount("s1"))
	h2.Publish("s1", RecordDeleted("r1"))
	assert.Equal(t, "r1", recv(t, other).RecordID)
}

func TestUnsubscribe_RemovesEmptyTopic(t *testing.T) {
	h := newTestHub(8)
	sub := h.Subscribe("s1")
	require.Equal(t, 1, h.Sessions())

	h.Unsubscribe(sub)
	assert.Equal(t, 0, h.Sessions())
	assert.Equal(t, 0, h.SubscriberCount("s1"))
}

func TestPublish_DropsFullSubscriber(t *testing.T) {
	h := newTestHub(2)
	slow := h.Subscribe("s1")
	fast := h.Subscribe("s1")

	for i := 0; i < 3; i++ {
		h.Publish("s1", RecordDeleted(fmt.Sprintf("r%d", i)))
		recv(t, fast)
	}

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not dropped")
	}
	assert.Equal(t, 1, h.SubscriberCount("s1"))

	// The dropped subscriber keeps what it had buffered, in order.
	assert.Equal(t, "r0", recv(t, slow).RecordID)
	assert.Equal(t, "r1", recv(t, slow).RecordID)

	h.Publish("s1", RecordDeleted("r3"))
	assert.Equal(t, "r3", recv(t, fast).RecordID)
	assertNoEvent(t, slow)

	// Unsubscribing an already-dropped handle is harmless.
	h.Unsubscribe(slow)
	assert.Equal(t, 1, h.SubscriberCount("s1"))
}

func TestSubscribeDuringPublish(t *testing.T) {
	h := newTestHub(1024)
	base := h.Subscribe("s1")
	defer h.Unsubscribe(base)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sub := h.Subscribe("s1")
				h.Unsubscribe(sub)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		h.Publish("s1", RecordDeleted(fmt.Sprintf("r%d", i)))
	}
	close(stop)
	wg.Wait()

	for i := 0; i < 200; i++ {
		require.Equal(t, fmt.Sprintf("r%d", i), recv(t, base).RecordID)
	}
	assert.Equal(t, 1, h.SubscriberCount("s1"))
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	h := newTestHub(8)
	early := h.Subscribe("s1")
	defer h.Unsubscribe(early)

	h.Publish("s1", RecordAdded(models.Record{ID: "r1", SessionID: "s1", Callsign: "W1AW"}))

	late := h.Subscribe("s1")
	defer h.Unsubscribe(late)

	assert.Equal(t, "r1", recv(t, early).Record.ID)
	assertNoEvent(t, late)
}

func TestSubscribe_ExistingTopicSkipsHubWriteLock(t *testing.T) {
	h := newTestHub(8)
	first := h.Subscribe("s1")
	defer h.Unsubscribe(first)

	// A reader on the hub lock stands in for publishes to other sessions.
	h.mu.RLock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub := h.Subscribe("s1")
		h.Unsubscribe(sub)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		h.mu.RUnlock()
		t.Fatal("subscribe to an existing session waited on the hub write lock")
	}
	h.mu.RUnlock()
	assert.Equal(t, 1, h.SubscriberCount("s1"))
}

func TestSubscribe_RacingLastUnsubscribeNeverOrphans(t *testing.T) {
	h := newTestHub(1024)

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sub := h.Subscribe("s1")
				want := fmt.Sprintf("w%d-%d", w, i)
				h.Publish("s1", RecordDeleted(want))
				deadline := time.After(time.Second)
			wait:
				for {
					select {
					case ev := <-sub.Events():
						if ev.RecordID == want {
							break wait
						}
					case <-deadline:
						t.Errorf("subscriber missed its own event %s", want)
						break wait
					}
				}
				h.Unsubscribe(sub)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, h.Sessions())
	assert.Equal(t, 0, h.SubscriberCount("s1"))
}
