package scenes

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/internal/core/systems"
)

var (
	// ErrTransitionInProgress rejects a load while another transition runs.
	ErrTransitionInProgress = errors.New("scene transition in progress")
	ErrNotFound             = errors.New("scene not found")
	ErrCurrentScene         = errors.New("scene is currently loaded")
)

// Config wires a Manager. Despawn removes an entity through the engine so
// removal events fire; when nil the store is mutated directly.
type Config struct {
	Registry *systems.Registry
	Store    *entity.Store
	Bus      *events.Bus
	Logger   log.Log
	Despawn  func(entity.ID)
}

// Manager owns the scene table and the single current scene. Transitions are
// the one place in the engine with built-in mutual exclusion: loading while
// a transition is in flight is a hard error, and loading scene B always
// fully unloads the current scene first.
type Manager struct {
	mu            sync.Mutex
	scenes        map[string]*Scene
	current       *Scene
	transitioning bool

	registry *systems.Registry
	store    *entity.Store
	bus      *events.Bus
	logger   log.Log
	despawn  func(entity.ID)
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		scenes:   make(map[string]*Scene),
		registry: cfg.Registry,
		store:    cfg.Store,
		bus:      cfg.Bus,
		logger:   cfg.Logger.With(log.String("component", "scenes")),
		despawn:  cfg.Despawn,
	}
	if m.despawn == nil {
		m.despawn = func(id entity.ID) { m.store.Remove(id) }
	}
	return m
}

// Add registers a scene. An existing id is overwritten with a warning.
func (m *Manager) Add(sc *Scene) {
	m.mu.Lock()
	if _, exists := m.scenes[sc.ID]; exists {
		m.logger.Warn("Replacing existing scene", log.String("scene", sc.ID))
	}
	m.scenes[sc.ID] = sc
	m.mu.Unlock()

	_ = m.bus.Publish(events.SceneAdded{At: time.Now(), SceneID: sc.ID, Name: sc.Name})
}

// Remove drops a scene from the table. The current scene must be unloaded
// first.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		return fmt.Errorf("%w: %s", ErrCurrentScene, id)
	}
	if _, ok := m.scenes[id]; !ok {
		m.logger.Warn("Remove of unknown scene", log.String("scene", id))
		return nil
	}
	delete(m.scenes, id)
	_ = m.bus.Publish(events.SceneRemoved{At: time.Now(), SceneID: id})
	return nil
}

func (m *Manager) Get(id string) (*Scene, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenes[id]
	return sc, ok
}

// Current returns the loaded scene, nil in the no-scene state.
func (m *Manager) Current() *Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) IsTransitioning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitioning
}

// Load transitions to the scene with the given id, fully unloading the
// current scene first. A concurrent load is rejected hard.
func (m *Manager) Load(id string, st *state.State) error {
	m.mu.Lock()
	if m.transitioning {
		m.mu.Unlock()
		return ErrTransitionInProgress
	}
	target, ok := m.scenes[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.transitioning = true
	previous := m.current
	m.current = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.transitioning = false
		m.mu.Unlock()
	}()

	if previous != nil {
		m.unload(previous, st)
	}

	for _, name := range target.Systems {
		if err := m.registry.SetEnabled(name, true); err != nil {
			m.logger.Warn("Scene requires unknown system",
				log.String("scene", target.ID),
				log.String("system", name))
		}
	}
	for _, eid := range target.Entities {
		if e, ok := m.store.Get(eid); ok {
			e.Scene = target.ID
		} else {
			m.logger.Warn("Scene lists unknown entity",
				log.String("scene", target.ID),
				log.String("entity_id", string(eid)))
		}
	}
	if target.OnLoad != nil {
		if err := target.OnLoad(st); err != nil {
			m.rollback(target)
			return fmt.Errorf("load scene %s: %w", target.ID, err)
		}
	}

	if len(target.Settings) > 0 {
		st.MergeSettings(target.Settings)
	}

	m.mu.Lock()
	m.current = target
	m.mu.Unlock()

	m.logger.Info("Scene loaded", log.String("scene", target.ID), log.String("name", target.Name))
	_ = m.bus.Publish(events.SceneLoaded{At: time.Now(), SceneID: target.ID, Name: target.Name})
	return nil
}

// UnloadCurrent tears down the loaded scene. A no-scene state warns and
// returns.
func (m *Manager) UnloadCurrent(st *state.State) error {
	m.mu.Lock()
	if m.transitioning {
		m.mu.Unlock()
		return ErrTransitionInProgress
	}
	current := m.current
	if current == nil {
		m.mu.Unlock()
		m.logger.Warn("Unload with no scene loaded")
		return nil
	}
	m.transitioning = true
	m.current = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.transitioning = false
		m.mu.Unlock()
	}()

	m.unload(current, st)
	return nil
}

// rollback reverts the enable and tag steps after a failed load hook so no
// half-loaded scene survives the error.
func (m *Manager) rollback(sc *Scene) {
	for _, name := range sc.Systems {
		_ = m.registry.SetEnabled(name, false)
	}
	for _, eid := range sc.Entities {
		if e, ok := m.store.Get(eid); ok && e.Scene == sc.ID {
			e.Scene = ""
		}
	}
	m.logger.Warn("Scene load rolled back", log.String("scene", sc.ID))
}

// unload runs the scene's unload hook, despawns entities tagged to the
// scene and disables its systems. Hook errors are logged, never propagated:
// a broken unload must not wedge the transition.
func (m *Manager) unload(sc *Scene, st *state.State) {
	if sc.OnUnload != nil {
		if err := sc.OnUnload(st); err != nil {
			m.logger.Error("Scene unload hook failed", log.String("scene", sc.ID), log.Error(err))
		}
	}

	for _, e := range m.store.ByScene(sc.ID) {
		m.despawn(e.ID)
	}
	for _, name := range sc.Systems {
		if err := m.registry.SetEnabled(name, false); err != nil {
			m.logger.Warn("Scene system missing on unload",
				log.String("scene", sc.ID),
				log.String("system", name))
		}
	}

	m.logger.Info("Scene unloaded", log.String("scene", sc.ID))
	_ = m.bus.Publish(events.SceneUnloaded{At: time.Now(), SceneID: sc.ID})
}
