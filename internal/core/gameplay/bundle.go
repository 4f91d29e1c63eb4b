package gameplay

import (
	"github.com/simforge/simforge/internal/core/plugins"
)

// PluginName identifies the built-in bundle in the plugin manager.
const PluginName = "gameplay-core"

// Plugin packages the built-in systems and actions as an installable bundle.
func Plugin(tn Tunables) *plugins.Plugin {
	return &plugins.Plugin{
		Name:    PluginName,
		Version: "1.0.0",
		Install: func(h plugins.Host) error {
			h.AddSystem(newMovementSystem(tn))
			h.AddSystem(newRegenSystem(tn))
			h.AddSystem(newDespawnSystem(h))
			for _, def := range definitions(tn) {
				if err := h.RegisterAction(def); err != nil {
					return err
				}
			}
			return nil
		},
		Uninstall: func(h plugins.Host) error {
			for _, def := range definitions(tn) {
				h.UnregisterAction(def.Type)
			}
			h.RemoveSystem(DespawnSystemName)
			h.RemoveSystem(RegenSystemName)
			h.RemoveSystem(MovementSystemName)
			return nil
		},
	}
}
