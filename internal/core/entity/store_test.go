package entity

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"pgregory.net/rapid"

	"github.com/simforge/simforge/internal/core/observability/log"
)

func TestAddBeyondCapacityFails(t *testing.T) {
	s := NewStore(2, log.NewNop())
	if err := s.Add(New(KindPlayer, mgl64.Vec3{})); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if err := s.Add(New(KindPlayer, mgl64.Vec3{})); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	err := s.Add(New(KindPlayer, mgl64.Vec3{}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("store grew past capacity: %d", s.Len())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewStore(10, log.NewNop())
	e := New(KindEnemy, mgl64.Vec3{1, 0, 1})
	if err := s.Add(e); err != nil {
		t.Fatalf("add: %v", err)
	}
	if removed := s.Remove(e.ID); removed == nil {
		t.Fatal("first remove returned nil")
	}
	if _, ok := s.Get(e.ID); ok {
		t.Fatal("entity still present after remove")
	}
	// second remove warns and returns nil, never panics
	if removed := s.Remove(e.ID); removed != nil {
		t.Fatal("second remove returned an entity")
	}
}

func TestByKindFilters(t *testing.T) {
	s := NewStore(10, log.NewNop())
	_ = s.Add(New(KindPlayer, mgl64.Vec3{}))
	_ = s.Add(New(KindEnemy, mgl64.Vec3{}))
	_ = s.Add(New(KindEnemy, mgl64.Vec3{}))
	if got := len(s.ByKind(KindEnemy)); got != 2 {
		t.Fatalf("expected 2 enemies, got %d", got)
	}
	if got := len(s.ByKind(KindCrop)); got != 0 {
		t.Fatalf("expected no crops, got %d", got)
	}
}

func TestFactoryStampsDefaults(t *testing.T) {
	p := New(KindPlayer, mgl64.Vec3{1, 2, 3})
	if p.ID == "" {
		t.Fatal("missing id")
	}
	if p.Combat == nil || p.Inventory == nil {
		t.Fatal("player variants not stamped")
	}
	if p.Scale != (mgl64.Vec3{1, 1, 1}) {
		t.Fatalf("unexpected scale: %v", p.Scale)
	}
	item := New(KindItem, mgl64.Vec3{})
	if item.Combat != nil {
		t.Fatal("item must not carry combat stats")
	}
}

// Property: under any interleaving of adds and removes the store size never
// exceeds capacity and Get reflects the last operation on each id.
func TestStoreCapacityInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		const capacity = 8
		s := NewStore(capacity, log.NewNop())
		var ids []ID
		ops := rapid.IntRange(1, 50).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(rt, "add") {
				e := New(KindItem, mgl64.Vec3{})
				if err := s.Add(e); err == nil {
					ids = append(ids, e.ID)
				} else if !errors.Is(err, ErrLimitExceeded) {
					rt.Fatalf("unexpected error: %v", err)
				}
			} else if len(ids) > 0 {
				idx := rapid.IntRange(0, len(ids)-1).Draw(rt, "victim")
				s.Remove(ids[idx])
				ids = append(ids[:idx], ids[idx+1:]...)
			}
			if s.Len() > capacity {
				rt.Fatalf("size %d exceeds capacity %d", s.Len(), capacity)
			}
		}
		for _, id := range ids {
			if _, ok := s.Get(id); !ok {
				rt.Fatalf("live entity %s missing", id)
			}
		}
	})
}
