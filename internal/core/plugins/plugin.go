// Package plugins installs and uninstalls dependency-ordered bundles of
// systems and action definitions.
package plugins

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/simforge/simforge/internal/core/actions"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/scenes"
	"github.com/simforge/simforge/internal/core/systems"
)

// Host is the engine surface a plugin wires itself into.
type Host interface {
	AddSystem(sys systems.System)
	RemoveSystem(name string)
	RegisterAction(def *actions.Definition) error
	UnregisterAction(actionType string)
	AddScene(sc *scenes.Scene)
	RemoveScene(id string) error
	CreateEntity(kind entity.Kind, position mgl64.Vec3) (*entity.Entity, error)
	RemoveEntity(id entity.ID)
}

// Plugin is an installable bundle. Install typically calls AddSystem and
// RegisterAction on the host; Uninstall reverses it.
type Plugin struct {
	Name         string
	Version      string
	Dependencies []string

	Install   func(Host) error
	Uninstall func(Host) error
}

// State tracks a plugin's lifecycle outcome.
type State string

const (
	StateInstalled State = "installed"
	StateError     State = "error"
)
