package systems

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/pkg/sequence"
)

// ErrNotFound is returned by operations that demand an existing system.
var ErrNotFound = errors.New("system not found")

type slot struct {
	sys     System
	enabled bool
}

// Registry stores systems by name and runs the enabled ones in ascending
// priority order each tick. A failing or panicking Update is contained and
// reported as a system:error event; it never aborts the tick for the
// remaining systems.
type Registry struct {
	mu     sync.RWMutex
	slots  map[string]*slot
	bus    *events.Bus
	logger log.Log
}

func NewRegistry(bus *events.Bus, logger log.Log) *Registry {
	return &Registry{
		slots:  make(map[string]*slot),
		bus:    bus,
		logger: logger.With(log.String("component", "systems")),
	}
}

// Add registers a system under its name, enabled. An existing name is
// overwritten with a warning rather than a hard failure.
func (r *Registry) Add(sys System) {
	r.mu.Lock()
	if _, exists := r.slots[sys.Name()]; exists {
		r.logger.Warn("Replacing existing system", log.String("system", sys.Name()))
	}
	r.slots[sys.Name()] = &slot{sys: sys, enabled: true}
	r.mu.Unlock()

	_ = r.bus.Publish(events.SystemAdded{At: time.Now(), Name: sys.Name(), Priority: sys.Priority()})
}

// Remove invokes the system's Destroy hook and deletes it. Destroy errors
// are logged, never propagated.
func (r *Registry) Remove(name string, st *state.State) {
	r.mu.Lock()
	sl, ok := r.slots[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("Remove of unknown system", log.String("system", name))
		return
	}
	delete(r.slots, name)
	r.mu.Unlock()

	if err := safeDestroy(sl.sys, st); err != nil {
		r.logger.Error("System destroy failed", log.String("system", name), log.Error(err))
	}
	_ = r.bus.Publish(events.SystemRemoved{At: time.Now(), Name: name})
}

func (r *Registry) Get(name string) (System, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.slots[name]
	if !ok {
		return nil, false
	}
	return sl.sys, true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	sl.enabled = enabled
	return nil
}

func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.slots[name]
	return ok && sl.enabled
}

// Names returns all registered system names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.slots))
	for name := range r.slots {
		out = append(out, name)
	}
	return out
}

// ordered returns a snapshot of slots sorted ascending by priority.
func (r *Registry) ordered(enabledOnly bool) []System {
	r.mu.RLock()
	snapshot := make([]System, 0, len(r.slots))
	for _, sl := range r.slots {
		if enabledOnly && !sl.enabled {
			continue
		}
		snapshot = append(snapshot, sl.sys)
	}
	r.mu.RUnlock()

	return sequence.From(snapshot).
		Sort(func(a, b System) bool { return a.Priority() < b.Priority() }).
		Collect()
}

// InitAll runs every system's Init hook in priority order, joining errors.
func (r *Registry) InitAll(st *state.State) error {
	var all error
	for _, sys := range r.ordered(false) {
		if err := sys.Init(st); err != nil {
			all = errors.Join(all, fmt.Errorf("init %s: %w", sys.Name(), err))
		}
	}
	return all
}

// Update runs the enabled systems sequentially in ascending priority order.
func (r *Registry) Update(st *state.State) {
	for _, sys := range r.ordered(true) {
		if err := safeUpdate(sys, st); err != nil {
			r.logger.Error("System update failed",
				log.String("system", sys.Name()),
				log.Error(err))
			_ = r.bus.Publish(events.SystemError{At: time.Now(), System: sys.Name(), Err: err})
		}
	}
}

// DestroyAll tears down every system in reverse priority order.
func (r *Registry) DestroyAll(st *state.State) {
	ordered := r.ordered(false)
	for i := len(ordered) - 1; i >= 0; i-- {
		sys := ordered[i]
		if err := safeDestroy(sys, st); err != nil {
			r.logger.Error("System destroy failed", log.String("system", sys.Name()), log.Error(err))
		}
	}
	r.mu.Lock()
	r.slots = make(map[string]*slot)
	r.mu.Unlock()
}

func safeUpdate(sys System, st *state.State) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in system %s: %v", sys.Name(), rec)
		}
	}()
	return sys.Update(st)
}

func safeDestroy(sys System, st *state.State) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in system %s destroy: %v", sys.Name(), rec)
		}
	}()
	return sys.Destroy(st)
}
