package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultBufferSize is the dispatch queue depth used when none is configured.
const defaultBufferSize = 256

// Subscriber receives committed events. Subscribers run on the notifier's
// dispatch goroutine: they must return promptly and must NOT call back into
// the store that produced the event. Reentrant mutation is undefined behavior.
type Subscriber func(*Event)

// Notifier fans committed events out to subscribers, one entity kind at a
// time. Publish is safe to call while holding a store lock: it only enqueues;
// delivery happens on a single dispatch goroutine, so events for one store
// are observed in exactly the order their mutations committed.
type Notifier struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[Kind][]Subscriber

	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a Notifier and starts its dispatch goroutine.
// bufferSize bounds the number of undelivered events; 0 selects the default.
func NewNotifier(logger *zap.Logger, bufferSize int) *Notifier {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	n := &Notifier{
		logger: logger,
		subs:   make(map[Kind][]Subscriber),
		queue:  make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}

	go n.dispatch()

	return n
}

// Subscribe registers fn for every event of the given kind. There is no
// unsubscribe: subscriber sets are fixed at wiring time.
func (n *Notifier) Subscribe(kind Kind, fn Subscriber) {
	if fn == nil {
		panic("subscriber cannot be nil")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[kind] = append(n.subs[kind], fn)
}

// Publish enqueues an event for delivery. It assigns the event id and
// timestamp if unset. Publish never blocks: callers hold store locks, and a
// stalled subscriber that backlogs the queue must not wedge mutations. On a
// full queue the event is dropped with a warning and a counter; delivered
// events still arrive in commit order.
func (n *Notifier) Publish(ev *Event) {
	if ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case <-n.done:
		n.logger.Warn("event dropped, notifier closed",
			zap.String("kind", ev.Kind.String()),
			zap.String("action", ev.Action.String()),
			zap.String("entity_id", ev.EntityID),
		)
		return
	default:
	}

	select {
	case n.queue <- ev:
		RecordEventPublished(ev.Kind.String(), ev.Action.String())
		RecordQueueDepth(float64(len(n.queue)))
	default:
		RecordEventDropped(ev.Kind.String())
		n.logger.Warn("event dropped, dispatch queue full",
			zap.String("kind", ev.Kind.String()),
			zap.String("action", ev.Action.String()),
			zap.String("entity_id", ev.EntityID),
		)
	}
}

// dispatch delivers queued events until Close is called, then drains
// whatever is still buffered before exiting.
func (n *Notifier) dispatch() {
	for {
		select {
		case ev := <-n.queue:
			n.deliver(ev)
			RecordQueueDepth(float64(len(n.queue)))
		case <-n.done:
			for {
				select {
				case ev := <-n.queue:
					n.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver invokes every subscriber for the event's kind. A panicking
// subscriber is logged and skipped; it never fails the mutation that
// produced the event, and never blocks delivery to the remaining subscribers.
func (n *Notifier) deliver(ev *Event) {
	n.mu.RLock()
	subs := n.subs[ev.Kind]
	n.mu.RUnlock()

	for i, fn := range subs {
		n.safeInvoke(ev, i, fn)
	}
}

// safeInvoke runs one subscriber with panic isolation.
func (n *Notifier) safeInvoke(ev *Event, index int, fn Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			RecordSubscriberPanic(ev.Kind.String())
			n.logger.Error("event subscriber panicked",
				zap.String("kind", ev.Kind.String()),
				zap.String("action", ev.Action.String()),
				zap.String("event_id", ev.ID),
				zap.Int("subscriber", index),
				zap.Any("panic", r),
			)
		}
	}()

	fn(ev)
}

// Close stops accepting events and waits for in-flight queue entries to be
// handed to the dispatcher. Safe to call multiple times.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
	})
	return nil
}
