package events

import (
	"time"

	"github.com/simforge/simforge/internal/core/entity"
)

// Type identifies an engine event. The engine set below is closed; gameplay
// code publishes Domain events under plugin-declared names instead of
// inventing new engine types.
type Type string

const (
	TypeEngineInitialized Type = "engine:initialized"
	TypeEngineStarted     Type = "engine:started"
	TypeEngineStopped     Type = "engine:stopped"
	TypeEngineUpdated     Type = "engine:updated"

	TypeEntityAdded   Type = "entity:added"
	TypeEntityRemoved Type = "entity:removed"

	TypeSystemAdded   Type = "system:added"
	TypeSystemRemoved Type = "system:removed"
	TypeSystemError   Type = "system:error"

	TypeActionRegistered   Type = "action:registered"
	TypeActionUnregistered Type = "action:unregistered"
	TypeActionProcessed    Type = "action:processed"
	TypeActionError        Type = "action:error"

	TypeSceneAdded    Type = "scene:added"
	TypeSceneRemoved  Type = "scene:removed"
	TypeSceneLoaded   Type = "scene:loaded"
	TypeSceneUnloaded Type = "scene:unloaded"

	TypePluginInstalled   Type = "plugin:installed"
	TypePluginUninstalled Type = "plugin:uninstalled"
	TypePluginError       Type = "plugin:error"
)

// Event is implemented by every payload struct in this package. Handlers
// receive the concrete struct and type-assert on the event type they
// subscribed to.
type Event interface {
	EventType() Type
	OccurredAt() time.Time
}

type EngineInitialized struct {
	At time.Time
}

func (e EngineInitialized) EventType() Type       { return TypeEngineInitialized }
func (e EngineInitialized) OccurredAt() time.Time { return e.At }

type EngineStarted struct {
	At time.Time
}

func (e EngineStarted) EventType() Type       { return TypeEngineStarted }
func (e EngineStarted) OccurredAt() time.Time { return e.At }

type EngineStopped struct {
	At time.Time
}

func (e EngineStopped) EventType() Type       { return TypeEngineStopped }
func (e EngineStopped) OccurredAt() time.Time { return e.At }

type EngineUpdated struct {
	At    time.Time
	Delta float64
	Tick  uint64
}

func (e EngineUpdated) EventType() Type       { return TypeEngineUpdated }
func (e EngineUpdated) OccurredAt() time.Time { return e.At }

type EntityAdded struct {
	At     time.Time
	Entity *entity.Entity
}

func (e EntityAdded) EventType() Type       { return TypeEntityAdded }
func (e EntityAdded) OccurredAt() time.Time { return e.At }

type EntityRemoved struct {
	At     time.Time
	Entity *entity.Entity
}

func (e EntityRemoved) EventType() Type       { return TypeEntityRemoved }
func (e EntityRemoved) OccurredAt() time.Time { return e.At }

type SystemAdded struct {
	At       time.Time
	Name     string
	Priority int
}

func (e SystemAdded) EventType() Type       { return TypeSystemAdded }
func (e SystemAdded) OccurredAt() time.Time { return e.At }

type SystemRemoved struct {
	At   time.Time
	Name string
}

func (e SystemRemoved) EventType() Type       { return TypeSystemRemoved }
func (e SystemRemoved) OccurredAt() time.Time { return e.At }

type SystemError struct {
	At     time.Time
	System string
	Err    error
}

func (e SystemError) EventType() Type       { return TypeSystemError }
func (e SystemError) OccurredAt() time.Time { return e.At }

type ActionRegistered struct {
	At     time.Time
	Action string
}

func (e ActionRegistered) EventType() Type       { return TypeActionRegistered }
func (e ActionRegistered) OccurredAt() time.Time { return e.At }

type ActionUnregistered struct {
	At     time.Time
	Action string
}

func (e ActionUnregistered) EventType() Type       { return TypeActionUnregistered }
func (e ActionUnregistered) OccurredAt() time.Time { return e.At }

// ActionProcessed reports the outcome of every pipeline invocation that made
// it past the type lookup, success or not.
type ActionProcessed struct {
	At      time.Time
	Action  string
	UserID  string
	Success bool
	Code    string
	Message string
	Data    map[string]any
}

func (e ActionProcessed) EventType() Type       { return TypeActionProcessed }
func (e ActionProcessed) OccurredAt() time.Time { return e.At }

type ActionError struct {
	At     time.Time
	Action string
	UserID string
	Err    error
}

func (e ActionError) EventType() Type       { return TypeActionError }
func (e ActionError) OccurredAt() time.Time { return e.At }

type SceneAdded struct {
	At      time.Time
	SceneID string
	Name    string
}

func (e SceneAdded) EventType() Type       { return TypeSceneAdded }
func (e SceneAdded) OccurredAt() time.Time { return e.At }

type SceneRemoved struct {
	At      time.Time
	SceneID string
}

func (e SceneRemoved) EventType() Type       { return TypeSceneRemoved }
func (e SceneRemoved) OccurredAt() time.Time { return e.At }

type SceneLoaded struct {
	At      time.Time
	SceneID string
	Name    string
}

func (e SceneLoaded) EventType() Type       { return TypeSceneLoaded }
func (e SceneLoaded) OccurredAt() time.Time { return e.At }

type SceneUnloaded struct {
	At      time.Time
	SceneID string
}

func (e SceneUnloaded) EventType() Type       { return TypeSceneUnloaded }
func (e SceneUnloaded) OccurredAt() time.Time { return e.At }

type PluginInstalled struct {
	At      time.Time
	Name    string
	Version string
}

func (e PluginInstalled) EventType() Type       { return TypePluginInstalled }
func (e PluginInstalled) OccurredAt() time.Time { return e.At }

type PluginUninstalled struct {
	At   time.Time
	Name string
}

func (e PluginUninstalled) EventType() Type       { return TypePluginUninstalled }
func (e PluginUninstalled) OccurredAt() time.Time { return e.At }

type PluginError struct {
	At   time.Time
	Name string
	Err  error
}

func (e PluginError) EventType() Type       { return TypePluginError }
func (e PluginError) OccurredAt() time.Time { return e.At }

// Domain is the escape hatch for gameplay events (combat damage, crop growth
// and the like). The name is declared by the plugin that emits it; handlers
// subscribe with Type(name).
type Domain struct {
	At   time.Time
	Name string
	Data map[string]any
}

func (e Domain) EventType() Type       { return Type(e.Name) }
func (e Domain) OccurredAt() time.Time { return e.At }
