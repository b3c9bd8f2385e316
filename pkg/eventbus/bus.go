// Package eventbus fans out monitor updates to any number of consumers without ever blocking the publisher.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Topic creates a group of subscribers that only receive events published to that topic
type Topic string

const (
	defaultTopic Topic = "__default__"

	// DefaultBuffer is the per-subscriber channel size used when New is given a size below one.
	DefaultBuffer = 16
)

// Unsubscribe removes a subscriber and closes its channel.  It is safe to call more than once.
type Unsubscribe func()

type subscriber struct {
	c    chan Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.c) })
}

// EventBus dispatches events to all subcribers on one or more topics.  Subscribers with no topic join a default
// topic that receives every event published on any topic.  Subscribers can use the EventType to filter which
// events they respond to rather than configuring multiple topics.
//
// Dispatch never blocks: each subscriber has a buffered channel and an event that does not fit is dropped for
// that subscriber.  A slow dashboard therefore cannot stall ingestion.
type EventBus struct {
	subscribers map[Topic][]*subscriber
	buffer      int
	closed      bool
	dropped     uint64
	mutex       sync.RWMutex
}

// New returns a new event bus whose subscribers each buffer up to buffer events.
func New(buffer int) *EventBus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &EventBus{
		subscribers: make(map[Topic][]*subscriber),
		buffer:      buffer,
	}
}

// Subscribe will register a subscriber to 0 or more topics.  If no topic is defined, the subscriber will added
// to the default topic and receive all events published on any topic.
//
// The returned channel is closed on Unsubscribe or when the bus shuts down; subscribers should treat a closed
// channel as a shutdown signal.
func (e *EventBus) Subscribe(topics ...Topic) (<-chan Event, Unsubscribe) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	s := &subscriber{c: make(chan Event, e.buffer)}
	if e.closed {
		s.close()
		return s.c, func() {}
	}

	// subscribe to the default topic if no topics defined
	if len(topics) == 0 {
		topics = []Topic{defaultTopic}
	}
	for _, topic := range topics {
		e.subscribers[topic] = append(e.subscribers[topic], s)
	}
	return s.c, func() { e.unsubscribe(s) }
}

func (e *EventBus) unsubscribe(s *subscriber) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for topic, subs := range e.subscribers {
		kept := subs[:0]
		for _, sub := range subs {
			if sub != s {
				kept = append(kept, sub)
			}
		}
		if len(kept) == 0 {
			delete(e.subscribers, topic)
			continue
		}
		e.subscribers[topic] = kept
	}
	s.close()
}

// Dispatch will send the event to 0 or more topics.  All events are broadcast to default topic subscribers,
// even when other topics are specified.  A subscriber registered on several matching topics receives the event
// once.
func (e *EventBus) Dispatch(event Event, topics ...Topic) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.closed {
		return
	}

	// always send to the defaultTopic even if other topics specified
	topics = append(topics, defaultTopic)

	sent := make(map[*subscriber]struct{})
	for _, topic := range topics {
		// no subscribers on a topic is fine, events on specialized topics may have no audience
		for _, s := range e.subscribers[topic] {
			if _, ok := sent[s]; ok {
				continue
			}
			sent[s] = struct{}{}
			select {
			case s.c <- event:
			default:
				atomic.AddUint64(&e.dropped, 1)
			}
		}
	}
}

// Dropped is the number of deliveries skipped because a subscriber's buffer was full.
func (e *EventBus) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// Subscribers returns the number of distinct registered subscribers.
func (e *EventBus) Subscribers() int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	seen := make(map[*subscriber]struct{})
	for _, subs := range e.subscribers {
		for _, s := range subs {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

// Shutdown closes every subscriber channel and stops further dispatch.  It returns ErrShutdownTimeout if the
// context ends before the bus could be locked, which only happens while a dispatch is in progress.
func (e *EventBus) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.mutex.Lock()
		defer e.mutex.Unlock()
		defer close(done)

		if e.closed {
			return
		}
		e.closed = true
		for _, subs := range e.subscribers {
			for _, s := range subs {
				// close all subscriber channels to signal shutdown
				s.close()
			}
		}
		e.subscribers = make(map[Topic][]*subscriber)
	}()

	select {
	case <-ctx.Done():
		return ErrShutdownTimeout
	case <-done:
		return nil
	}
}
