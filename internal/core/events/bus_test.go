package events

import (
	"errors"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	var got Event
	b.Subscribe(TypeEngineStarted, func(e Event) error {
		got = e
		return nil
	})
	ev := EngineStarted{At: time.Now()}
	if err := b.Publish(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil {
		t.Fatal("handler not called")
	}
	if got.EventType() != TypeEngineStarted {
		t.Fatalf("wrong type delivered: %s", got.EventType())
	}
}

func TestPublishIsolatesTypes(t *testing.T) {
	b := NewBus()
	count := 0
	b.Subscribe(TypeEntityAdded, func(Event) error { count++; return nil })
	_ = b.Publish(EntityRemoved{At: time.Now()})
	if count != 0 {
		t.Fatalf("handler for entity:added called for entity:removed")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	count := 0
	sub := b.Subscribe(TypeEngineUpdated, func(Event) error { count++; return nil })
	_ = b.Publish(EngineUpdated{At: time.Now(), Tick: 1})
	sub.Cancel()
	sub.Cancel() // second cancel is a no-op
	_ = b.Publish(EngineUpdated{At: time.Now(), Tick: 2})
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	if b.Subscribers(TypeEngineUpdated) != 0 {
		t.Fatal("subscription not removed")
	}
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := NewBus()
	err1 := errors.New("one")
	err2 := errors.New("two")
	b.Subscribe(TypeSystemError, func(Event) error { return err1 })
	b.Subscribe(TypeSystemError, func(Event) error { return err2 })
	err := b.Publish(SystemError{At: time.Now(), System: "broken"})
	if !errors.Is(err, err1) || !errors.Is(err, err2) {
		t.Fatalf("expected both handler errors joined, got %v", err)
	}
}

func TestCancelRacesPublish(t *testing.T) {
	b := NewBus()
	subs := make([]*Subscription, 0, 16)
	for i := 0; i < 16; i++ {
		subs = append(subs, b.Subscribe(TypeEngineUpdated, func(Event) error { return nil }))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = b.Publish(EngineUpdated{At: time.Now(), Tick: uint64(i)})
		}
	}()
	for _, sub := range subs {
		sub.Cancel()
	}
	<-done

	if b.Subscribers(TypeEngineUpdated) != 0 {
		t.Fatalf("expected all subscriptions removed, %d left", b.Subscribers(TypeEngineUpdated))
	}
	for _, sub := range subs {
		if sub.IsActive() {
			t.Fatal("cancelled subscription still reports active")
		}
	}
}

func TestDomainEventsUsePluginDeclaredType(t *testing.T) {
	b := NewBus()
	var name string
	b.Subscribe(Type("combat:damage"), func(e Event) error {
		name = e.(Domain).Name
		return nil
	})
	_ = b.Publish(Domain{At: time.Now(), Name: "combat:damage", Data: map[string]any{"amount": 5}})
	if name != "combat:damage" {
		t.Fatalf("domain event not routed by declared name, got %q", name)
	}
}
