// Package actions implements the validation and dispatch pipeline for
// player-submitted state change requests.
package actions

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/state"
)

// Result codes surfaced to callers. Failures of every pipeline stage are
// ordinary results, not errors; only the engine's hard invariants throw.
const (
	CodeOK            = "ok"
	CodeUnknownAction = "unknown_action"
	CodeInvalidInput  = "invalid_input"
	CodeRateLimited   = "rate_limited"
	CodeCooldown      = "cooldown"
	CodeRejected      = "rejected"
	CodeInternal      = "internal_error"
)

// Result is the outcome of one pipeline invocation.
type Result struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Issues  []Issue        `json:"issues,omitempty"`
	Data    map[string]any `json:"data,omitempty"`

	// StateChanges is shallow-merged into GameState settings after a
	// successful handler; Events are published on the engine bus.
	StateChanges map[string]any  `json:"-"`
	Events       []events.Domain `json:"-"`
}

func ok(data map[string]any) *Result {
	return &Result{Success: true, Code: CodeOK, Data: data}
}

func fail(code, message string) *Result {
	return &Result{Success: false, Code: code, Message: message}
}

// Context carries per-request metadata into validators and handlers.
type Context struct {
	UserID string
	Role   string
	Guest  bool
	At     time.Time

	State *state.State
	Host  Host
}

// Host is the slice of the engine surface handlers may touch. Keeping it an
// interface lets tests drive the pipeline without a full engine.
type Host interface {
	CreateEntity(kind entity.Kind, position mgl64.Vec3) (*entity.Entity, error)
	RemoveEntity(id entity.ID)
}

// Handler executes a validated action. Returned errors are caught at the
// pipeline boundary and converted into internal-error results.
type Handler func(ctx context.Context, actx *Context, data map[string]any) (*Result, error)

// Validator is the optional custom rule evaluated after schema validation.
// A non-nil error rejects the action.
type Validator func(ctx context.Context, actx *Context, data map[string]any) error

// Definition describes one registered action type.
type Definition struct {
	// Type is the unique action name.
	Type string

	// Schema validates the raw payload before anything else runs.
	Schema Schema

	// Validate is the optional custom rule stage.
	Validate Validator

	// Handle runs once all validation stages pass.
	Handle Handler

	// Cooldown is the minimum interval between accepted dispatches of this
	// type for one user. Zero disables the check.
	Cooldown time.Duration

	// Priority orders batch processing, ascending. Priority 0 is reserved
	// for critical actions: a failing critical action abandons the rest of
	// its batch.
	Priority int
}

// Request is one queued or batched invocation.
type Request struct {
	Type string
	Data map[string]any
	Ctx  Context
}
