package entity

import (
	"errors"
	"sync"

	"github.com/simforge/simforge/internal/core/observability/log"
)

// ErrLimitExceeded is returned by Add when the store is at capacity.
var ErrLimitExceeded = errors.New("entity limit exceeded")

const DefaultCapacity = 10_000

// Store is the identity map of simulated objects. Mutations of stored
// entities happen on the engine's single writer; the store itself is guarded
// so read-only collaborators (snapshots, stats) can iterate concurrently.
type Store struct {
	mu       sync.RWMutex
	entities map[ID]*Entity
	capacity int
	logger   log.Log
}

func NewStore(capacity int, logger log.Log) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entities: make(map[ID]*Entity),
		capacity: capacity,
		logger:   logger.With(log.String("component", "entity_store")),
	}
}

// Add registers an entity under its id. Fails hard at capacity so callers
// can surface the limit instead of silently dropping spawns.
func (s *Store) Add(e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; !exists && len(s.entities) >= s.capacity {
		return ErrLimitExceeded
	}
	s.entities[e.ID] = e
	return nil
}

// Remove deletes an entity and returns it. Removing a missing id is a
// warning, not an error.
func (s *Store) Remove(id ID) *Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		s.logger.Warn("Remove of unknown entity", log.String("entity_id", string(id)))
		return nil
	}
	delete(s.entities, id)
	return e
}

func (s *Store) Get(id ID) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

// ByKind is a linear filter over the map. The simulated populations are
// small enough that a secondary index isn't worth its bookkeeping.
func (s *Store) ByKind(kind Kind) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entity
	for _, e := range s.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ByScene returns entities tagged to a scene id.
func (s *Store) ByScene(scene string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entity
	for _, e := range s.entities {
		if e.Scene == scene {
			out = append(out, e)
		}
	}
	return out
}

// All returns a snapshot slice of every entity.
func (s *Store) All() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *Store) Capacity() int {
	return s.capacity
}
