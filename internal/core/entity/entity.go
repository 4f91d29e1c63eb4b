package entity

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ID uniquely identifies an entity within one engine instance.
type ID string

// Kind is an open type tag. The constants below cover the built-in gameplay
// bundle; plugins may introduce their own kinds.
type Kind string

const (
	KindPlayer Kind = "player"
	KindEnemy  Kind = "enemy"
	KindItem   Kind = "item"
	KindCrop   Kind = "crop"
)

// Combat holds the fields shared by anything that can fight or be fought.
type Combat struct {
	Health      float64
	MaxHealth   float64
	AttackPower float64
	AttackRange float64
}

// Item is a stackable inventory entry.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Inventory is an ordered list of items with a slot cap.
type Inventory struct {
	Items    []Item
	Capacity int
}

// IndexOf returns the position of an item or -1.
func (inv *Inventory) IndexOf(itemID string) int {
	for i, it := range inv.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// Add stacks onto an existing entry or appends a new one. Returns false when
// the inventory is full.
func (inv *Inventory) Add(item Item) bool {
	if i := inv.IndexOf(item.ID); i >= 0 {
		inv.Items[i].Quantity += item.Quantity
		return true
	}
	if inv.Capacity > 0 && len(inv.Items) >= inv.Capacity {
		return false
	}
	inv.Items = append(inv.Items, item)
	return true
}

// Remove takes quantity of an item, dropping the entry when it reaches zero.
// Returns false when the item is absent or short.
func (inv *Inventory) Remove(itemID string, quantity int) bool {
	i := inv.IndexOf(itemID)
	if i < 0 || inv.Items[i].Quantity < quantity {
		return false
	}
	inv.Items[i].Quantity -= quantity
	if inv.Items[i].Quantity == 0 {
		inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
	}
	return true
}

// Lifetime marks an entity for despawn at a deadline.
type Lifetime struct {
	ExpiresAt time.Time
}

// Crop tracks growth for farmable entities.
type Crop struct {
	Species   string
	Stage     int
	MaxStage  int
	PlantedAt time.Time
	Growth    float64
}

// Entity is a simulated object. Fields are mutated in place by systems and
// action handlers running on the engine's single writer; the variant pointers
// are nil for kinds that don't carry them, with Ext as the open fallback for
// truly ad hoc data.
type Entity struct {
	ID       ID
	Kind     Kind
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
	Velocity mgl64.Vec3

	// Scene is the id of the scene this entity is tagged to, empty when the
	// entity is scene-independent.
	Scene string

	Combat    *Combat
	Inventory *Inventory
	Lifetime  *Lifetime
	Crop      *Crop
	Ext       map[string]any

	CreatedAt time.Time
}

// New stamps a fresh id and per-kind default variants.
func New(kind Kind, position mgl64.Vec3) *Entity {
	e := &Entity{
		ID:        ID(uuid.NewString()),
		Kind:      kind,
		Position:  position,
		Scale:     mgl64.Vec3{1, 1, 1},
		CreatedAt: time.Now(),
	}
	switch kind {
	case KindPlayer:
		e.Combat = &Combat{Health: 100, MaxHealth: 100, AttackPower: 10, AttackRange: 5}
		e.Inventory = &Inventory{Capacity: 20}
	case KindEnemy:
		e.Combat = &Combat{Health: 50, MaxHealth: 50, AttackPower: 5, AttackRange: 3}
	case KindCrop:
		e.Crop = &Crop{MaxStage: 3, PlantedAt: time.Now()}
	}
	return e
}

// DistanceTo returns the euclidean distance between two entities.
func (e *Entity) DistanceTo(other *Entity) float64 {
	return e.Position.Sub(other.Position).Len()
}

// Alive reports whether the entity has combat stats and health above zero.
func (e *Entity) Alive() bool {
	return e.Combat != nil && e.Combat.Health > 0
}
