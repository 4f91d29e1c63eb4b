package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/simforge/simforge/internal/core/clock"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/state"
	"github.com/simforge/simforge/internal/core/systems"
	"github.com/simforge/simforge/pkg/sequence"
)

const (
	// DefaultMinInterval is the floor rate limit between accepted actions of
	// any type for one user.
	DefaultMinInterval = 100 * time.Millisecond

	// DefaultQueueCapacity bounds the async staging queue.
	DefaultQueueCapacity = 1024

	// SystemName is the registry name of the pipeline-as-system.
	SystemName = "actions"
)

var (
	ErrTypeRequired    = errors.New("action type required")
	ErrHandlerRequired = errors.New("action handler required")
	ErrQueueFull       = errors.New("action queue full")
)

// Config tunes a Pipeline. Zero values fall back to defaults; Clock defaults
// to the wall clock.
type Config struct {
	Bus            *events.Bus
	Logger         log.Log
	Clock          clock.Clock
	MinInterval    time.Duration
	QueueCapacity  int
	CooldownShards int
}

// Pipeline validates and dispatches actions: lookup, schema validation,
// floor rate limit, cooldown check, custom rule, cooldown commit, handler,
// side effects. The first failing stage terminates the invocation with a
// failure result.
//
// The pipeline holds no step lock of its own: synchronous Process calls are
// serialized by the engine, and the staging queue is drained by the
// pipeline-as-system inside the tick, on the same single writer.
type Pipeline struct {
	mu   sync.RWMutex
	defs map[string]*Definition

	cooldowns   *CooldownStore
	minInterval time.Duration
	clk         clock.Clock
	bus         *events.Bus
	logger      log.Log

	queueMu  sync.Mutex
	pending  []Request
	queueCap int
}

func New(cfg Config) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	return &Pipeline{
		defs:        make(map[string]*Definition),
		cooldowns:   NewCooldownStore(cfg.CooldownShards),
		minInterval: cfg.MinInterval,
		clk:         cfg.Clock,
		bus:         cfg.Bus,
		logger:      cfg.Logger.With(log.String("component", "actions")),
	}
}

// Register adds an action definition. An existing type is overwritten with a
// warning.
func (p *Pipeline) Register(def *Definition) error {
	if def.Type == "" {
		return ErrTypeRequired
	}
	if def.Handle == nil {
		return ErrHandlerRequired
	}

	p.mu.Lock()
	if _, exists := p.defs[def.Type]; exists {
		p.logger.Warn("Replacing existing action", log.String("action", def.Type))
	}
	p.defs[def.Type] = def
	p.mu.Unlock()

	_ = p.bus.Publish(events.ActionRegistered{At: p.clk.Now(), Action: def.Type})
	return nil
}

// Unregister removes an action type. Unknown types warn and return.
func (p *Pipeline) Unregister(actionType string) {
	p.mu.Lock()
	_, ok := p.defs[actionType]
	delete(p.defs, actionType)
	p.mu.Unlock()

	if !ok {
		p.logger.Warn("Unregister of unknown action", log.String("action", actionType))
		return
	}
	_ = p.bus.Publish(events.ActionUnregistered{At: p.clk.Now(), Action: actionType})
}

func (p *Pipeline) Definition(actionType string) (*Definition, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.defs[actionType]
	return def, ok
}

// Types returns all registered action type names.
func (p *Pipeline) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.defs))
	for t := range p.defs {
		out = append(out, t)
	}
	return out
}

// Process runs one action through the pipeline. An unknown type fails
// immediately without emitting an event; every other outcome publishes
// action:processed.
func (p *Pipeline) Process(ctx context.Context, actionType string, data map[string]any, actx Context) *Result {
	def, ok := p.Definition(actionType)
	if !ok {
		return fail(CodeUnknownAction, fmt.Sprintf("unknown action type %q", actionType))
	}

	now := p.clk.Now()
	if actx.At.IsZero() {
		actx.At = now
	}

	res := p.run(ctx, def, data, &actx, now)

	_ = p.bus.Publish(events.ActionProcessed{
		At:      now,
		Action:  actionType,
		UserID:  actx.UserID,
		Success: res.Success,
		Code:    res.Code,
		Message: res.Message,
		Data:    res.Data,
	})
	return res
}

func (p *Pipeline) run(ctx context.Context, def *Definition, data map[string]any, actx *Context, now time.Time) *Result {
	if issues := def.Schema.Validate(data); len(issues) > 0 {
		res := fail(CodeInvalidInput, "payload failed schema validation")
		res.Issues = issues
		return res
	}

	if rem := p.cooldowns.FloorRemaining(actx.UserID, p.minInterval, now); rem > 0 {
		return fail(CodeRateLimited, fmt.Sprintf("too many actions, retry in %dms", rem.Milliseconds()))
	}

	if rem := p.cooldowns.Remaining(actx.UserID, def.Type, def.Cooldown, now); rem > 0 {
		return fail(CodeCooldown, fmt.Sprintf("action on cooldown, retry in %dms", rem.Milliseconds()))
	}

	if def.Validate != nil {
		if err := def.Validate(ctx, actx, data); err != nil {
			p.logger.Debug("Action rejected by custom validator",
				log.String("action", def.Type),
				log.String("user_id", actx.UserID),
				log.Error(err))
			return fail(CodeRejected, "failed custom validation")
		}
	}

	// All gates passed: the acceptance is on the ledger before the handler
	// runs, so a slow or failing handler still burns the cooldown.
	p.cooldowns.Commit(actx.UserID, def.Type, now)

	res, err := p.safeHandle(ctx, def, data, actx)
	if err != nil {
		p.logger.Error("Action handler failed",
			log.String("action", def.Type),
			log.String("user_id", actx.UserID),
			log.Error(err))
		_ = p.bus.Publish(events.ActionError{At: now, Action: def.Type, UserID: actx.UserID, Err: err})
		return fail(CodeInternal, "internal error processing action")
	}
	if res == nil {
		res = ok(nil)
	}

	if res.Success {
		if len(res.StateChanges) > 0 && actx.State != nil {
			actx.State.MergeSettings(res.StateChanges)
		}
		for _, ev := range res.Events {
			if ev.At.IsZero() {
				ev.At = now
			}
			_ = p.bus.Publish(ev)
		}
	}
	return res
}

func (p *Pipeline) safeHandle(ctx context.Context, def *Definition, data map[string]any, actx *Context) (res *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("panic in handler for %s: %v", def.Type, rec)
		}
	}()
	return def.Handle(ctx, actx, data)
}

// ProcessBatch executes requests sequentially in ascending definition
// priority. When a critical action (definition priority 0) fails, the
// remaining requests are abandoned with failure results.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch []Request) []*Result {
	pq := sequence.NewMinPriorityQueue[Request]()
	for _, req := range batch {
		prio := int(math.MaxInt32) // unknown types run last and cannot short-circuit
		if def, ok := p.Definition(req.Type); ok {
			prio = def.Priority
		}
		pq.Enqueue(req, prio)
	}

	results := make([]*Result, 0, len(batch))
	abandoned := false
	for {
		req, ok := pq.Dequeue()
		if !ok {
			break
		}
		if abandoned {
			results = append(results, fail(CodeRejected, "batch abandoned after critical action failure"))
			continue
		}
		res := p.Process(ctx, req.Type, req.Data, req.Ctx)
		results = append(results, res)
		if !res.Success {
			if def, known := p.Definition(req.Type); known && def.Priority == 0 {
				abandoned = true
			}
		}
	}
	return results
}

// Enqueue stages a request for the next tick. The queue is drained by the
// pipeline-as-system on the engine's single writer, which is how gateway
// traffic is serialized against system updates.
func (p *Pipeline) Enqueue(req Request) error {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if len(p.pending) >= p.queueCap {
		return ErrQueueFull
	}
	p.pending = append(p.pending, req)
	return nil
}

// QueueLen reports the number of staged requests.
func (p *Pipeline) QueueLen() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return len(p.pending)
}

// Forget drops the cooldown ledger for a user.
func (p *Pipeline) Forget(userID string) {
	p.cooldowns.Forget(userID)
}

// System adapts the pipeline into the priority-0 registry entry that drains
// staged requests at the start of every tick.
func (p *Pipeline) System() systems.System {
	return systems.Funcs{
		SystemName:     SystemName,
		SystemPriority: 0,
		OnUpdate: func(st *state.State) error {
			p.drain(st)
			return nil
		},
	}
}

func (p *Pipeline) drain(st *state.State) {
	p.queueMu.Lock()
	pending := p.pending
	p.pending = nil
	p.queueMu.Unlock()

	if len(pending) == 0 {
		return
	}
	for i := range pending {
		pending[i].Ctx.State = st
	}
	p.ProcessBatch(context.Background(), pending)
}
