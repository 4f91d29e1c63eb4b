package scenes

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/internal/core/systems"
)

type fixture struct {
	m        *Manager
	registry *systems.Registry
	store    *entity.Store
	st       *state.State
	bus      *events.Bus
}

func newFixture() *fixture {
	bus := events.NewBus()
	store := entity.NewStore(100, log.NewNop())
	registry := systems.NewRegistry(bus, log.NewNop())
	return &fixture{
		m: NewManager(Config{
			Registry: registry,
			Store:    store,
			Bus:      bus,
			Logger:   log.NewNop(),
		}),
		registry: registry,
		store:    store,
		st:       state.New(store),
		bus:      bus,
	}
}

func TestLoadUnloadsCurrentFirst(t *testing.T) {
	f := newFixture()
	var order []string
	f.m.Add(&Scene{
		ID:       "lobby",
		OnUnload: func(*state.State) error { order = append(order, "unload:lobby"); return nil },
	})
	f.m.Add(&Scene{
		ID:     "arena",
		OnLoad: func(*state.State) error { order = append(order, "load:arena"); return nil },
	})

	if err := f.m.Load("lobby", f.st); err != nil {
		t.Fatalf("load lobby: %v", err)
	}
	if err := f.m.Load("arena", f.st); err != nil {
		t.Fatalf("load arena: %v", err)
	}

	if len(order) != 2 || order[0] != "unload:lobby" || order[1] != "load:arena" {
		t.Fatalf("wrong transition order: %v", order)
	}
	if cur := f.m.Current(); cur == nil || cur.ID != "arena" {
		t.Fatalf("current scene = %v, want arena", cur)
	}
}

func TestConcurrentLoadRejected(t *testing.T) {
	f := newFixture()
	var loadErr error
	f.m.Add(&Scene{ID: "b"})
	f.m.Add(&Scene{
		ID: "a",
		// a load issued while this transition runs must be rejected
		OnLoad: func(st *state.State) error {
			loadErr = f.m.Load("b", st)
			return nil
		},
	})

	if err := f.m.Load("a", f.st); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if !errors.Is(loadErr, ErrTransitionInProgress) {
		t.Fatalf("expected ErrTransitionInProgress, got %v", loadErr)
	}
}

func TestLoadUnknownScene(t *testing.T) {
	f := newFixture()
	if err := f.m.Load("missing", f.st); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadTagsEntitiesAndEnablesSystems(t *testing.T) {
	f := newFixture()
	e := entity.New(entity.KindItem, mgl64.Vec3{})
	if err := f.store.Add(e); err != nil {
		t.Fatalf("add entity: %v", err)
	}
	f.registry.Add(systems.Funcs{SystemName: "spawner", SystemPriority: 10})
	if err := f.registry.SetEnabled("spawner", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	f.m.Add(&Scene{
		ID:       "dungeon",
		Entities: []entity.ID{e.ID},
		Systems:  []string{"spawner"},
		Settings: map[string]any{"difficulty": "hard"},
	})
	if err := f.m.Load("dungeon", f.st); err != nil {
		t.Fatalf("load: %v", err)
	}

	if e.Scene != "dungeon" {
		t.Fatalf("entity not tagged, scene=%q", e.Scene)
	}
	if !f.registry.IsEnabled("spawner") {
		t.Fatal("required system not enabled")
	}
	if f.st.Settings["difficulty"] != "hard" {
		t.Fatal("scene settings not merged")
	}
}

func TestFailedLoadHookRollsBack(t *testing.T) {
	f := newFixture()
	e := entity.New(entity.KindItem, mgl64.Vec3{})
	if err := f.store.Add(e); err != nil {
		t.Fatalf("add entity: %v", err)
	}
	f.registry.Add(systems.Funcs{SystemName: "spawner", SystemPriority: 10})
	if err := f.registry.SetEnabled("spawner", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	boom := errors.New("boom")
	f.m.Add(&Scene{
		ID:       "dungeon",
		Entities: []entity.ID{e.ID},
		Systems:  []string{"spawner"},
		Settings: map[string]any{"difficulty": "hard"},
		OnLoad:   func(*state.State) error { return boom },
	})
	f.m.Add(&Scene{ID: "lobby"})

	if err := f.m.Load("dungeon", f.st); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}

	if f.m.Current() != nil {
		t.Fatal("failed load left a current scene")
	}
	if e.Scene != "" {
		t.Fatalf("entity still tagged after rollback, scene=%q", e.Scene)
	}
	if f.registry.IsEnabled("spawner") {
		t.Fatal("system still enabled after rollback")
	}
	if _, ok := f.st.Settings["difficulty"]; ok {
		t.Fatal("settings merged despite failed load")
	}

	// the transition flag must clear so the manager is usable again
	if err := f.m.Load("lobby", f.st); err != nil {
		t.Fatalf("load after failed transition: %v", err)
	}
}

func TestUnloadDespawnsTaggedEntitiesAndDisablesSystems(t *testing.T) {
	f := newFixture()
	e := entity.New(entity.KindEnemy, mgl64.Vec3{})
	_ = f.store.Add(e)
	f.registry.Add(systems.Funcs{SystemName: "ai", SystemPriority: 20})

	f.m.Add(&Scene{ID: "cave", Entities: []entity.ID{e.ID}, Systems: []string{"ai"}})
	if err := f.m.Load("cave", f.st); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.m.UnloadCurrent(f.st); err != nil {
		t.Fatalf("unload: %v", err)
	}

	if _, ok := f.store.Get(e.ID); ok {
		t.Fatal("scene-tagged entity survived unload")
	}
	if f.registry.IsEnabled("ai") {
		t.Fatal("scene system still enabled")
	}
	if f.m.Current() != nil {
		t.Fatal("current scene not cleared")
	}
	// unload with no scene is a warn no-op
	if err := f.m.UnloadCurrent(f.st); err != nil {
		t.Fatalf("second unload: %v", err)
	}
}

func TestRemoveCurrentSceneRefused(t *testing.T) {
	f := newFixture()
	f.m.Add(&Scene{ID: "keep"})
	if err := f.m.Load("keep", f.st); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.m.Remove("keep"); !errors.Is(err, ErrCurrentScene) {
		t.Fatalf("expected ErrCurrentScene, got %v", err)
	}
}
