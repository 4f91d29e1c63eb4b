package gameplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simforge/simforge/internal/core/actions"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/state"
)

const (
	ActionMove   = "move"
	ActionAttack = "attack"
	ActionPickup = "pickup"
	ActionDrop   = "drop"
)

var directions = map[string]mgl64.Vec3{
	"forward": {0, 0, 1},
	"back":    {0, 0, -1},
	"left":    {-1, 0, 0},
	"right":   {1, 0, 0},
	"up":      {0, 1, 0},
	"down":    {0, -1, 0},
}

// OwnerKey is the Ext key linking a player entity to its user id.
const OwnerKey = "user"

// SpawnPlayer creates the player entity for a user, tagged via Ext so
// actions can find it.
func SpawnPlayer(h actions.Host, userID string, position mgl64.Vec3) (*entity.Entity, error) {
	e, err := h.CreateEntity(entity.KindPlayer, position)
	if err != nil {
		return nil, err
	}
	if e.Ext == nil {
		e.Ext = make(map[string]any)
	}
	e.Ext[OwnerKey] = userID
	return e, nil
}

// PlayerFor finds the player entity owned by a user.
func PlayerFor(st *state.State, userID string) (*entity.Entity, bool) {
	for _, e := range st.Entities.ByKind(entity.KindPlayer) {
		if owner, _ := e.Ext[OwnerKey].(string); owner == userID {
			return e, true
		}
	}
	return nil, false
}

// definitions builds the bundle's action set with its anti-cheat guards.
func definitions(tn Tunables) []*actions.Definition {
	return []*actions.Definition{
		moveDefinition(tn),
		attackDefinition(tn),
		pickupDefinition(tn),
		dropDefinition(),
	}
}

func moveDefinition(tn Tunables) *actions.Definition {
	return &actions.Definition{
		Type: ActionMove,
		Schema: actions.Schema{
			"direction": {Kind: actions.FieldString, Required: true, MaxLen: 16},
			"distance":  {Kind: actions.FieldNumber, Min: actions.Float(0)},
		},
		Cooldown: tn.MoveCooldown,
		Priority: 1,
		Validate: func(_ context.Context, actx *actions.Context, data map[string]any) error {
			dir, _ := data["direction"].(string)
			// teleport is rejected outright, whatever the role claims
			if dir == "teleport" {
				return errors.New("teleport is not a movement direction")
			}
			if _, known := directions[dir]; !known {
				return fmt.Errorf("unknown direction %q", dir)
			}
			if dist := numberOr(data, "distance", 1); dist > tn.MaxStepDistance {
				return fmt.Errorf("step of %.1f exceeds maximum %.1f", dist, tn.MaxStepDistance)
			}
			if _, ok := PlayerFor(actx.State, actx.UserID); !ok {
				return errors.New("no player entity for user")
			}
			return nil
		},
		Handle: func(_ context.Context, actx *actions.Context, data map[string]any) (*actions.Result, error) {
			player, _ := PlayerFor(actx.State, actx.UserID)
			dir := directions[data["direction"].(string)]
			dist := numberOr(data, "distance", 1)
			player.Position = player.Position.Add(dir.Mul(dist))
			return &actions.Result{
				Success: true,
				Code:    actions.CodeOK,
				Data: map[string]any{
					"position": [3]float64(player.Position),
				},
			}, nil
		},
	}
}

func attackDefinition(tn Tunables) *actions.Definition {
	return &actions.Definition{
		Type: ActionAttack,
		Schema: actions.Schema{
			"targetId": {Kind: actions.FieldString, Required: true, MaxLen: 64},
		},
		Cooldown: tn.AttackCooldown,
		Priority: 1,
		Validate: func(_ context.Context, actx *actions.Context, data map[string]any) error {
			attacker, ok := PlayerFor(actx.State, actx.UserID)
			if !ok {
				return errors.New("no player entity for user")
			}
			if !attacker.Alive() {
				return errors.New("dead attackers don't attack")
			}
			targetID, _ := data["targetId"].(string)
			if entity.ID(targetID) == attacker.ID {
				return errors.New("self-targeting is not allowed")
			}
			target, ok := actx.State.Entities.Get(entity.ID(targetID))
			if !ok {
				return errors.New("target not found")
			}
			if target.Combat == nil {
				return errors.New("target cannot be attacked")
			}
			if attacker.DistanceTo(target) > attacker.Combat.AttackRange {
				return errors.New("target out of range")
			}
			return nil
		},
		Handle: func(_ context.Context, actx *actions.Context, data map[string]any) (*actions.Result, error) {
			attacker, _ := PlayerFor(actx.State, actx.UserID)
			target, ok := actx.State.Entities.Get(entity.ID(data["targetId"].(string)))
			if !ok {
				return &actions.Result{Success: false, Code: actions.CodeRejected, Message: "target vanished"}, nil
			}
			damage := attacker.Combat.AttackPower
			target.Combat.Health -= damage
			killed := target.Combat.Health <= 0
			if killed {
				actx.Host.RemoveEntity(target.ID)
			}
			return &actions.Result{
				Success: true,
				Code:    actions.CodeOK,
				Data: map[string]any{
					"damage": damage,
					"killed": killed,
				},
				Events: []events.Domain{{
					Name: "combat:damage",
					Data: map[string]any{
						"attacker": string(attacker.ID),
						"target":   string(target.ID),
						"damage":   damage,
						"killed":   killed,
					},
				}},
			}, nil
		},
	}
}

func pickupDefinition(tn Tunables) *actions.Definition {
	return &actions.Definition{
		Type: ActionPickup,
		Schema: actions.Schema{
			"itemId": {Kind: actions.FieldString, Required: true, MaxLen: 64},
		},
		Priority: 2,
		Validate: func(_ context.Context, actx *actions.Context, data map[string]any) error {
			player, ok := PlayerFor(actx.State, actx.UserID)
			if !ok {
				return errors.New("no player entity for user")
			}
			itemID, _ := data["itemId"].(string)
			item, ok := actx.State.Entities.Get(entity.ID(itemID))
			if !ok || item.Kind != entity.KindItem {
				return errors.New("item not found")
			}
			if player.DistanceTo(item) > tn.PickupRange {
				return errors.New("item out of reach")
			}
			return nil
		},
		Handle: func(_ context.Context, actx *actions.Context, data map[string]any) (*actions.Result, error) {
			player, _ := PlayerFor(actx.State, actx.UserID)
			itemEnt, ok := actx.State.Entities.Get(entity.ID(data["itemId"].(string)))
			if !ok {
				return &actions.Result{Success: false, Code: actions.CodeRejected, Message: "item vanished"}, nil
			}
			stack := itemStack(itemEnt)
			if !player.Inventory.Add(stack) {
				return &actions.Result{Success: false, Code: actions.CodeRejected, Message: "inventory full"}, nil
			}
			actx.Host.RemoveEntity(itemEnt.ID)
			return &actions.Result{
				Success: true,
				Code:    actions.CodeOK,
				Data:    map[string]any{"item": stack.ID, "quantity": stack.Quantity},
			}, nil
		},
	}
}

func dropDefinition() *actions.Definition {
	return &actions.Definition{
		Type: ActionDrop,
		Schema: actions.Schema{
			"itemId":   {Kind: actions.FieldString, Required: true, MaxLen: 64},
			"quantity": {Kind: actions.FieldNumber, Min: actions.Float(1)},
		},
		Priority: 2,
		Validate: func(_ context.Context, actx *actions.Context, data map[string]any) error {
			player, ok := PlayerFor(actx.State, actx.UserID)
			if !ok {
				return errors.New("no player entity for user")
			}
			itemID, _ := data["itemId"].(string)
			qty := int(numberOr(data, "quantity", 1))
			if i := player.Inventory.IndexOf(itemID); i < 0 || player.Inventory.Items[i].Quantity < qty {
				return errors.New("item not in inventory")
			}
			return nil
		},
		Handle: func(_ context.Context, actx *actions.Context, data map[string]any) (*actions.Result, error) {
			player, _ := PlayerFor(actx.State, actx.UserID)
			itemID := data["itemId"].(string)
			qty := int(numberOr(data, "quantity", 1))
			idx := player.Inventory.IndexOf(itemID)
			name := player.Inventory.Items[idx].Name
			if !player.Inventory.Remove(itemID, qty) {
				return &actions.Result{Success: false, Code: actions.CodeRejected, Message: "item not in inventory"}, nil
			}
			dropped, err := actx.Host.CreateEntity(entity.KindItem, player.Position)
			if err != nil {
				return nil, err
			}
			dropped.Ext = map[string]any{"item": itemID, "name": name, "quantity": qty}
			dropped.Lifetime = &entity.Lifetime{ExpiresAt: time.Now().Add(5 * time.Minute)}
			return &actions.Result{
				Success: true,
				Code:    actions.CodeOK,
				Data:    map[string]any{"entityId": string(dropped.ID)},
			}, nil
		},
	}
}

// itemStack reads the stack description off an item entity's Ext bag.
func itemStack(e *entity.Entity) entity.Item {
	stack := entity.Item{ID: string(e.ID), Name: "item", Quantity: 1}
	if id, ok := e.Ext["item"].(string); ok {
		stack.ID = id
	}
	if name, ok := e.Ext["name"].(string); ok {
		stack.Name = name
	}
	switch q := e.Ext["quantity"].(type) {
	case int:
		stack.Quantity = q
	case float64:
		stack.Quantity = int(q)
	}
	return stack
}

func numberOr(data map[string]any, key string, fallback float64) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
