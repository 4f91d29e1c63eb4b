// Package gameplay is the built-in bundle of movement, combat, inventory
// and lifetime behavior, shipped as a plugin.
package gameplay

import (
	"time"

	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/plugins"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/internal/core/systems"
)

const (
	MovementSystemName = "gameplay:movement"
	RegenSystemName    = "gameplay:regen"
	DespawnSystemName  = "gameplay:despawn"
)

// Tunables are the gameplay knobs, loaded from config.
type Tunables struct {
	// MaxStepDistance bounds the distance of one accepted move action.
	MaxStepDistance float64
	// WorldBound is the half-extent of the playable cube; zero disables
	// position clamping.
	WorldBound float64
	// RegenPerSecond is passive player health regeneration.
	RegenPerSecond float64
	// PickupRange bounds how far a player can reach items.
	PickupRange float64

	MoveCooldown   time.Duration
	AttackCooldown time.Duration
}

func DefaultTunables() Tunables {
	return Tunables{
		MaxStepDistance: 5,
		WorldBound:      500,
		RegenPerSecond:  1,
		PickupRange:     3,
		MoveCooldown:    100 * time.Millisecond,
		AttackCooldown:  500 * time.Millisecond,
	}
}

// movementSystem integrates velocity and clamps positions into the world.
type movementSystem struct {
	systems.Base
	tn Tunables
}

func newMovementSystem(tn Tunables) *movementSystem {
	return &movementSystem{Base: systems.NewBase(MovementSystemName, 10), tn: tn}
}

func (s *movementSystem) Update(st *state.State) error {
	for _, e := range st.Entities.All() {
		if e.Velocity.Len() > 0 {
			e.Position = e.Position.Add(e.Velocity.Mul(st.Delta))
		}
		if s.tn.WorldBound > 0 {
			for i := range e.Position {
				if e.Position[i] > s.tn.WorldBound {
					e.Position[i] = s.tn.WorldBound
				} else if e.Position[i] < -s.tn.WorldBound {
					e.Position[i] = -s.tn.WorldBound
				}
			}
		}
	}
	return nil
}

// regenSystem heals living players toward their max health.
type regenSystem struct {
	systems.Base
	tn Tunables
}

func newRegenSystem(tn Tunables) *regenSystem {
	return &regenSystem{Base: systems.NewBase(RegenSystemName, 30), tn: tn}
}

func (s *regenSystem) Update(st *state.State) error {
	if s.tn.RegenPerSecond <= 0 {
		return nil
	}
	for _, e := range st.Entities.ByKind(entity.KindPlayer) {
		if !e.Alive() {
			continue
		}
		e.Combat.Health += s.tn.RegenPerSecond * st.Delta
		if e.Combat.Health > e.Combat.MaxHealth {
			e.Combat.Health = e.Combat.MaxHealth
		}
	}
	return nil
}

// despawnSystem removes entities whose lifetime expired, through the host so
// removal events fire.
type despawnSystem struct {
	systems.Base
	host plugins.Host
}

func newDespawnSystem(host plugins.Host) *despawnSystem {
	return &despawnSystem{Base: systems.NewBase(DespawnSystemName, 90), host: host}
}

func (s *despawnSystem) Update(st *state.State) error {
	now := time.Now()
	for _, e := range st.Entities.All() {
		if e.Lifetime != nil && now.After(e.Lifetime.ExpiresAt) {
			s.host.RemoveEntity(e.ID)
		}
	}
	return nil
}
