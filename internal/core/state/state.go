// Package state holds the single shared mutable snapshot every system and
// action handler operates on.
package state

import (
	"time"

	"github.com/simforge/simforge/internal/core/entity"
)

// State is the per-engine aggregate. Exactly one instance exists per engine;
// it is mutated every tick by the engine's single writer and never serialized
// wholesale to clients. Collaborators build views from it.
type State struct {
	Entities *entity.Store

	// Delta is the last frame time in seconds, Total the accumulated
	// simulation time, Tick the frame counter.
	Delta float64
	Total time.Duration
	Tick  uint64

	GameMode string
	Settings map[string]any
}

func New(entities *entity.Store) *State {
	return &State{
		Entities: entities,
		GameMode: "default",
		Settings: make(map[string]any),
	}
}

// MergeSettings shallow-merges overlay into Settings. The reserved gameMode
// key steers GameMode instead of landing in the bag.
func (s *State) MergeSettings(overlay map[string]any) {
	for k, v := range overlay {
		if k == "gameMode" {
			if mode, ok := v.(string); ok {
				s.GameMode = mode
				continue
			}
		}
		s.Settings[k] = v
	}
}

// Advance moves the simulation clock one frame.
func (s *State) Advance(delta float64) {
	s.Delta = delta
	s.Total += time.Duration(delta * float64(time.Second))
	s.Tick++
}
