// Package systems implements the priority-ordered registry of per-tick
// update units.
package systems

import "github.com/simforge/simforge/internal/core/state"

// System is a named unit of per-tick behavior. Lower priority runs earlier.
// Init runs once when the engine initializes, Update once per tick while the
// system is enabled, Destroy when the system is removed or the engine stops.
type System interface {
	Name() string
	Priority() int
	Init(*state.State) error
	Update(*state.State) error
	Destroy(*state.State) error
}

// Base provides no-op lifecycle hooks for embedding.
type Base struct {
	name     string
	priority int
}

func NewBase(name string, priority int) Base {
	return Base{name: name, priority: priority}
}

func (b Base) Name() string               { return b.name }
func (b Base) Priority() int              { return b.priority }
func (b Base) Init(*state.State) error    { return nil }
func (b Base) Update(*state.State) error  { return nil }
func (b Base) Destroy(*state.State) error { return nil }

// Funcs adapts plain functions into a System. Nil hooks are no-ops. Handy
// for plugins and tests.
type Funcs struct {
	SystemName     string
	SystemPriority int
	OnInit         func(*state.State) error
	OnUpdate       func(*state.State) error
	OnDestroy      func(*state.State) error
}

func (f Funcs) Name() string  { return f.SystemName }
func (f Funcs) Priority() int { return f.SystemPriority }

func (f Funcs) Init(st *state.State) error {
	if f.OnInit == nil {
		return nil
	}
	return f.OnInit(st)
}

func (f Funcs) Update(st *state.State) error {
	if f.OnUpdate == nil {
		return nil
	}
	return f.OnUpdate(st)
}

func (f Funcs) Destroy(st *state.State) error {
	if f.OnDestroy == nil {
		return nil
	}
	return f.OnDestroy(st)
}
