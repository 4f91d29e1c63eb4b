// Package engine assembles the simulation core: entity store, system
// registry, tick scheduler, action pipeline, scene and plugin managers,
// behind one facade consumed by the gateway and persistence collaborators.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simforge/simforge/internal/core/actions"
	"github.com/simforge/simforge/internal/core/clock"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/plugins"
	"github.com/simforge/simforge/internal/core/scenes"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/internal/core/systems"
)

// Config tunes one engine instance. Zero values fall back to defaults.
type Config struct {
	TickRate          int
	MaxEntities       int
	MinActionInterval time.Duration
	ActionQueueSize   int
	GameMode          string
	Logger            log.Log
	Clock             clock.Clock
}

// Engine owns the game state and serializes every mutation through a single
// step lock: the tick and all synchronous action processing acquire it, so
// no handler ever interleaves with a system update on GameState. Multiple
// engines can coexist in one process; nothing here is package-global.
type Engine struct {
	logger log.Log
	bus    *events.Bus
	store  *entity.Store
	st     *state.State

	registry *systems.Registry
	ticker   *clock.Ticker
	pipeline *actions.Pipeline
	scenes   *scenes.Manager
	plugins  *plugins.Manager

	// stepMu is the single-writer boundary over GameState.
	stepMu sync.Mutex

	initialized int32
	running     int32
}

var (
	_ plugins.Host = (*Engine)(nil)
	_ actions.Host = (*Engine)(nil)
)

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.LevelInfo)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}

	logger := cfg.Logger.With(log.String("component", "engine"))
	bus := events.NewBus()
	store := entity.NewStore(cfg.MaxEntities, cfg.Logger)
	st := state.New(store)
	if cfg.GameMode != "" {
		st.GameMode = cfg.GameMode
	}

	e := &Engine{
		logger:   logger,
		bus:      bus,
		store:    store,
		st:       st,
		registry: systems.NewRegistry(bus, cfg.Logger),
		ticker:   clock.NewTicker(cfg.TickRate, cfg.Logger),
	}
	e.pipeline = actions.New(actions.Config{
		Bus:           bus,
		Logger:        cfg.Logger,
		Clock:         cfg.Clock,
		MinInterval:   cfg.MinActionInterval,
		QueueCapacity: cfg.ActionQueueSize,
	})
	e.scenes = scenes.NewManager(scenes.Config{
		Registry: e.registry,
		Store:    store,
		Bus:      bus,
		Logger:   cfg.Logger,
		Despawn:  e.RemoveEntity,
	})
	e.plugins = plugins.NewManager(e, bus, cfg.Logger)

	// the pipeline drains queued actions first every tick
	e.registry.Add(e.pipeline.System())
	return e
}

// Init runs every registered system's init hook in priority order and wires
// the tick callback. Repeated calls warn and return.
func (e *Engine) Init() error {
	if !atomic.CompareAndSwapInt32(&e.initialized, 0, 1) {
		e.logger.Warn("Engine already initialized")
		return nil
	}
	if err := e.registry.InitAll(e.st); err != nil {
		atomic.StoreInt32(&e.initialized, 0)
		return err
	}
	e.ticker.AddCallback(e.Update)
	e.logger.Info("Engine initialized", log.Int("entity_capacity", e.store.Capacity()))
	_ = e.bus.Publish(events.EngineInitialized{At: time.Now()})
	return nil
}

// Start toggles the scheduler on. Repeated calls warn and return.
func (e *Engine) Start() {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		e.logger.Warn("Engine already running")
		return
	}
	e.ticker.Start()
	e.logger.Info("Engine started")
	_ = e.bus.Publish(events.EngineStarted{At: time.Now()})
}

// Stop toggles the scheduler off. In-flight queued actions are not drained
// or cancelled; the queue simply stops being serviced until the next Start.
func (e *Engine) Stop() {
	if !atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		e.logger.Warn("Engine already stopped")
		return
	}
	e.ticker.Stop()
	e.logger.Info("Engine stopped")
	_ = e.bus.Publish(events.EngineStopped{At: time.Now()})
}

// Close stops the engine and tears down every system.
func (e *Engine) Close() {
	if atomic.LoadInt32(&e.running) == 1 {
		e.Stop()
	}
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	e.registry.DestroyAll(e.st)
}

// Update advances the simulation one frame. No-ops when the engine is not
// running.
func (e *Engine) Update(delta float64) {
	if atomic.LoadInt32(&e.running) != 1 {
		return
	}
	e.stepMu.Lock()
	e.st.Advance(delta)
	e.registry.Update(e.st)
	tick := e.st.Tick
	e.stepMu.Unlock()

	_ = e.bus.Publish(events.EngineUpdated{At: time.Now(), Delta: delta, Tick: tick})
}

func (e *Engine) IsRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

// State exposes the live game state. Callers outside the tick must treat it
// as read-only.
func (e *Engine) State() *state.State { return e.st }

// Entities

func (e *Engine) AddEntity(ent *entity.Entity) error {
	if err := e.store.Add(ent); err != nil {
		return err
	}
	_ = e.bus.Publish(events.EntityAdded{At: time.Now(), Entity: ent})
	return nil
}

// CreateEntity builds an entity via the factory and adds it.
func (e *Engine) CreateEntity(kind entity.Kind, position mgl64.Vec3) (*entity.Entity, error) {
	ent := entity.New(kind, position)
	if err := e.AddEntity(ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func (e *Engine) RemoveEntity(id entity.ID) {
	if ent := e.store.Remove(id); ent != nil {
		_ = e.bus.Publish(events.EntityRemoved{At: time.Now(), Entity: ent})
	}
}

func (e *Engine) Entity(id entity.ID) (*entity.Entity, bool) {
	return e.store.Get(id)
}

func (e *Engine) EntitiesByKind(kind entity.Kind) []*entity.Entity {
	return e.store.ByKind(kind)
}

// Systems

func (e *Engine) AddSystem(sys systems.System) {
	e.registry.Add(sys)
}

func (e *Engine) RemoveSystem(name string) {
	e.registry.Remove(name, e.st)
}

func (e *Engine) System(name string) (systems.System, bool) {
	return e.registry.Get(name)
}

// Actions

func (e *Engine) RegisterAction(def *actions.Definition) error {
	return e.pipeline.Register(def)
}

func (e *Engine) UnregisterAction(actionType string) {
	e.pipeline.Unregister(actionType)
}

// ProcessAction runs one action synchronously on the single-writer boundary.
func (e *Engine) ProcessAction(ctx context.Context, actionType string, data map[string]any, actx actions.Context) *actions.Result {
	actx.State = e.st
	actx.Host = e
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.pipeline.Process(ctx, actionType, data, actx)
}

// ProcessBatch runs a batch synchronously on the single-writer boundary.
func (e *Engine) ProcessBatch(ctx context.Context, batch []actions.Request) []*actions.Result {
	for i := range batch {
		batch[i].Ctx.State = e.st
		batch[i].Ctx.Host = e
	}
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.pipeline.ProcessBatch(ctx, batch)
}

// Enqueue stages an action for the next tick; the pipeline-as-system drains
// it on the single writer.
func (e *Engine) Enqueue(req actions.Request) error {
	req.Ctx.Host = e
	return e.pipeline.Enqueue(req)
}

// ForgetUser drops per-user rate-limit state, e.g. on disconnect.
func (e *Engine) ForgetUser(userID string) {
	e.pipeline.Forget(userID)
}

// Scenes

func (e *Engine) AddScene(sc *scenes.Scene) {
	e.scenes.Add(sc)
}

func (e *Engine) RemoveScene(id string) error {
	return e.scenes.Remove(id)
}

func (e *Engine) LoadScene(id string) error {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.scenes.Load(id, e.st)
}

func (e *Engine) UnloadCurrentScene() error {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.scenes.UnloadCurrent(e.st)
}

func (e *Engine) CurrentScene() *scenes.Scene {
	return e.scenes.Current()
}

// Plugins

func (e *Engine) InstallPlugin(p *plugins.Plugin) error {
	return e.plugins.Install(p)
}

func (e *Engine) UninstallPlugin(name string) error {
	return e.plugins.Uninstall(name)
}

func (e *Engine) InstalledPlugins() []string {
	return e.plugins.Installed()
}

// Events

func (e *Engine) On(eventType events.Type, handler events.Handler) *events.Subscription {
	return e.bus.Subscribe(eventType, handler)
}

func (e *Engine) Off(sub *events.Subscription) {
	e.bus.Unsubscribe(sub)
}

// Stats is the minimal admin view served by the gateway.
type Stats struct {
	Running       bool     `json:"running"`
	Tick          uint64   `json:"tick"`
	FPS           float64  `json:"fps"`
	Entities      int      `json:"entities"`
	QueuedActions int      `json:"queued_actions"`
	Systems       []string `json:"systems"`
	Plugins       []string `json:"plugins"`
	Scene         string   `json:"scene,omitempty"`
}

func (e *Engine) Stats() Stats {
	e.stepMu.Lock()
	tick := e.st.Tick
	e.stepMu.Unlock()

	s := Stats{
		Running:       e.IsRunning(),
		Tick:          tick,
		FPS:           e.ticker.FPS(),
		Entities:      e.store.Len(),
		QueuedActions: e.pipeline.QueueLen(),
		Systems:       e.registry.Names(),
		Plugins:       e.plugins.Installed(),
	}
	if sc := e.scenes.Current(); sc != nil {
		s.Scene = sc.ID
	}
	return s
}
