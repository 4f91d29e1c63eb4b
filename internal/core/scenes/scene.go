// Package scenes manages named bundles of entities, systems and settings
// with serialized load/unload transitions.
package scenes

import (
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/state"
)

// Hook runs during a scene transition with the live state.
type Hook func(*state.State) error

// Scene is a named bundle. Entities lists members tagged to the scene on
// load; Systems names the registry entries the scene requires enabled;
// Settings is merged into GameState settings on load.
type Scene struct {
	ID       string
	Name     string
	Entities []entity.ID
	Systems  []string
	Settings map[string]any

	OnLoad   Hook
	OnUnload Hook
}
