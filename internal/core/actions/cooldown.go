package actions

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 16

// CooldownStore is the per-user acceptance ledger: a two-level map of
// userID -> actionType -> last accepted time plus a per-user floor timestamp
// for the type-independent rate limit. Users hash onto shards so gateway
// traffic for different users doesn't contend on one lock.
type CooldownStore struct {
	shards []cooldownShard
	count  uint64
}

type cooldownShard struct {
	mu sync.Mutex
	// lastUsed: userID -> actionType -> last accepted dispatch
	lastUsed map[string]map[string]time.Time
	// lastAccepted: userID -> last accepted dispatch of any type
	lastAccepted map[string]time.Time
}

func NewCooldownStore(shardCount int) *CooldownStore {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	s := &CooldownStore{
		shards: make([]cooldownShard, shardCount),
		count:  uint64(shardCount),
	}
	for i := range s.shards {
		s.shards[i].lastUsed = make(map[string]map[string]time.Time)
		s.shards[i].lastAccepted = make(map[string]time.Time)
	}
	return s
}

func (s *CooldownStore) shard(userID string) *cooldownShard {
	return &s.shards[xxhash.Sum64String(userID)%s.count]
}

// Remaining returns how long the (user, type) pair still has to wait, zero
// when the action may be accepted.
func (s *CooldownStore) Remaining(userID, actionType string, cooldown time.Duration, now time.Time) time.Duration {
	if cooldown <= 0 {
		return 0
	}
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	last, ok := sh.lastUsed[userID][actionType]
	if !ok {
		return 0
	}
	if elapsed := now.Sub(last); elapsed < cooldown {
		return cooldown - elapsed
	}
	return 0
}

// FloorRemaining returns how long the user still has to wait under the
// type-independent minimum interval between accepted actions.
func (s *CooldownStore) FloorRemaining(userID string, minInterval time.Duration, now time.Time) time.Duration {
	if minInterval <= 0 {
		return 0
	}
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	last, ok := sh.lastAccepted[userID]
	if !ok {
		return 0
	}
	if elapsed := now.Sub(last); elapsed < minInterval {
		return minInterval - elapsed
	}
	return 0
}

// Commit records an accepted dispatch. Called only after every validation
// stage has passed, before the handler runs.
func (s *CooldownStore) Commit(userID, actionType string, now time.Time) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.lastUsed[userID] == nil {
		sh.lastUsed[userID] = make(map[string]time.Time)
	}
	sh.lastUsed[userID][actionType] = now
	sh.lastAccepted[userID] = now
}

// Forget drops all ledger entries for a user, e.g. on disconnect.
func (s *CooldownStore) Forget(userID string) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.lastUsed, userID)
	delete(sh.lastAccepted, userID)
}
