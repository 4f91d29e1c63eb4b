package events

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handler processes one delivered event. A handler error does not stop
// delivery to the remaining handlers; Publish reports the joined errors.
type Handler func(Event) error

// Subscription is a handle returned by Subscribe. Cancel detaches the
// handler and is safe to call more than once.
type Subscription struct {
	id        string
	eventType Type
	active    int32 // atomic; read by Publish without the bus lock
	cancel    func()
}

func (s *Subscription) ID() string      { return s.id }
func (s *Subscription) EventType() Type { return s.eventType }
func (s *Subscription) IsActive() bool  { return atomic.LoadInt32(&s.active) == 1 }

func (s *Subscription) Cancel() {
	atomic.StoreInt32(&s.active, 0)
	if s.cancel != nil {
		s.cancel()
	}
}

// Bus is a thread-safe publish/subscribe dispatcher keyed by event type.
type Bus struct {
	mu sync.RWMutex
	// handlers: eventType -> subID -> handler
	handlers map[Type]map[string]*subscriber
}

type subscriber struct {
	sub     *Subscription
	handler Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type]map[string]*subscriber),
	}
}

func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]*subscriber)
	}
	id := uuid.NewString()
	s := &Subscription{id: id, eventType: eventType, active: 1}
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m, ok := b.handlers[eventType]; ok {
			delete(m, id)
		}
	}
	b.handlers[eventType][id] = &subscriber{sub: s, handler: handler}
	return s
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Cancel()
}

func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	var subs []*subscriber
	if m := b.handlers[event.EventType()]; m != nil {
		subs = make([]*subscriber, 0, len(m))
		for _, s := range m {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	var all error
	for _, s := range subs {
		if !s.sub.IsActive() {
			continue
		}
		if err := s.handler(event); err != nil {
			if all == nil {
				all = err
			} else {
				all = errors.Join(all, err)
			}
		}
	}
	return all
}

// PublishBatch publishes events in order, joining any handler errors.
func (b *Bus) PublishBatch(evs ...Event) error {
	var all error
	for _, e := range evs {
		if err := b.Publish(e); err != nil {
			if all == nil {
				all = err
			} else {
				all = errors.Join(all, err)
			}
		}
	}
	return all
}

// Subscribers returns the number of active handlers for a type.
func (b *Bus) Subscribers(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
