// Package events implements the §6 named event streams (signal,
// signalLive, signalBacktest, error, progress, done) as an in-process
// multicast per §9's design note: subscribe returns an unsubscribe token,
// delivery is serialized per subscriber (queued, never re-entrant), and a
// filter-then-once helper covers the common "wait for the next matching
// event" case.
package events

import (
	"sync"
)

// Stream names recognized by the engine (§6).
const (
	StreamSignal         = "signal"
	StreamSignalLive     = "signalLive"
	StreamSignalBacktest = "signalBacktest"
	StreamError          = "error"
	StreamProgress       = "progress"
	StreamDone           = "done"
)

// Event is one published item: a stream name plus an opaque payload
// (typically a signal.Result, an error, or a driver progress/done summary).
type Event struct {
	Stream  string
	Payload interface{}
}

// Handler processes one Event. Handlers for a single subscriber are
// invoked strictly in publish order and never concurrently.
type Handler func(Event)

// Subscription is the unsubscribe token returned by Subscribe.
type Subscription struct {
	unsubscribe func()
	once        sync.Once
}

// Unsubscribe stops delivery to this subscription's handler. Safe to call
// more than once or concurrently with delivery.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

const subscriberQueueDepth = 256

type subscriber struct {
	stream  string
	handler Handler
	queue   chan Event
	stop    chan struct{}
}

// Bus is the in-process event multicast. The zero value is not usable;
// use New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]*subscriber
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]*subscriber)}
}

// Subscribe registers handler for every Event published on stream.
// Delivery to this handler is queued and sequential; a slow handler only
// delays its own queue, never other subscribers.
func (b *Bus) Subscribe(stream string, handler Handler) *Subscription {
	sub := &subscriber{
		stream:  stream,
		handler: handler,
		queue:   make(chan Event, subscriberQueueDepth),
		stop:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[stream] = append(b.subscribers[stream], sub)
	b.mu.Unlock()

	go sub.run()

	return &Subscription{unsubscribe: func() {
		b.mu.Lock()
		peers := b.subscribers[stream]
		for i, s := range peers {
			if s == sub {
				b.subscribers[stream] = append(peers[:i], peers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(sub.stop)
	}}
}

func (s *subscriber) run() {
	for {
		select {
		case ev := <-s.queue:
			s.handler(ev)
		case <-s.stop:
			return
		}
	}
}

// Once subscribes a handler that fires at most once, for the first Event
// on stream matching predicate (or every event, if predicate is nil), then
// unsubscribes itself.
func (b *Bus) Once(stream string, predicate func(Event) bool, handler Handler) *Subscription {
	var sub *Subscription
	sub = b.Subscribe(stream, func(e Event) {
		if predicate != nil && !predicate(e) {
			return
		}
		handler(e)
		sub.Unsubscribe()
	})
	return sub
}

// Publish enqueues payload on stream for every current subscriber. A full
// subscriber queue drops the event rather than blocking the publisher —
// a slow consumer must not stall the tick loop.
func (b *Bus) Publish(stream string, payload interface{}) {
	b.mu.Lock()
	peers := append([]*subscriber(nil), b.subscribers[stream]...)
	b.mu.Unlock()

	ev := Event{Stream: stream, Payload: payload}
	for _, sub := range peers {
		select {
		case sub.queue <- ev:
		default:
		}
	}
}

// Close unsubscribes every handler on every stream.
func (b *Bus) Close() {
	b.mu.Lock()
	all := b.subscribers
	b.subscribers = make(map[string][]*subscriber)
	b.mu.Unlock()

	for _, peers := range all {
		for _, sub := range peers {
			close(sub.stop)
		}
	}
}
