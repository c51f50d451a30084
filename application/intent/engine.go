/*
Package intent Application layer - intent execution engine

The engine turns a mutating intent into a committed change:

 1. resolve the entity reference to one live entity
 2. plan the field updates against the entity's schema
 3. validate the operation fact through the validation gateway
 4. apply the plan and save the entity once
 5. append the mutation record to the audit log

Steps 1-5 run inside one unit of work. Preview runs steps 1-3 and parks the
change behind a single-use confirmation token; Confirm consumes the token and
runs the whole sequence against the entity as it is at that moment.

Handlers translate intent requests into Changes; the Dispatcher routes
requests to handlers and converts every error into a standard outcome.
*/
package intent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
)

// DeriveFunc computes the field updates to apply from the live entity and
// the raw updates of the request.
type DeriveFunc func(e intent.Entity, raw intent.FieldUpdates) (intent.FieldUpdates, error)

// Operation A named kind of mutation
type Operation struct {
	Name   string
	Action intent.Action

	// EntityTypes restricts the operation; empty allows every type.
	EntityTypes []intent.EntityType

	// Derive turns raw updates into field updates. Nil applies the raw
	// updates unchanged.
	Derive DeriveFunc
}

func (o Operation) allows(t intent.EntityType) bool {
	if len(o.EntityTypes) == 0 {
		return true
	}
	for _, allowed := range o.EntityTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// OperationUpdate is the generic field update operation.
const OperationUpdate = "UPDATE"

// Change A mutation requested by an intent, before resolution
type Change struct {
	Target    intent.Reference
	Operation string
	Updates   intent.FieldUpdates
}

// Config Engine settings
type Config struct {
	TokenTTL         time.Duration
	EvaluatorTimeout time.Duration
	Policy           intent.ValidationPolicy

	// ConfirmRequired lists intent codes whose commit path asks for
	// confirmation first.
	ConfirmRequired []string
}

// Dependencies Collaborators of the engine
type Dependencies struct {
	Entities  *intent.EntityStore
	Tokens    intent.TokenRepository
	Mutations intent.MutationLog
	UoW       shared.UnitOfWork
	Evaluator intent.RuleEvaluator
	Metrics   Metrics

	// Now defaults to time.Now.
	Now func() time.Time
	// NewToken defaults to a random UUID.
	NewToken func() string
}

// Engine Intent execution engine
type Engine struct {
	resolver  *Resolver
	mutator   *Mutator
	gateway   *Gateway
	store     *intent.EntityStore
	tokens    intent.TokenRepository
	mutations intent.MutationLog
	uow       shared.UnitOfWork
	metrics   Metrics
	now       func() time.Time
	newToken  func() string
	ttl       time.Duration
	confirm   map[string]bool

	mu         sync.RWMutex
	operations map[string]Operation
}

// NewEngine Create engine. The generic UPDATE operation is always registered.
func NewEngine(cfg Config, deps Dependencies) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	newToken := deps.NewToken
	if newToken == nil {
		newToken = randomToken
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = intent.DefaultTokenTTL
	}
	confirm := make(map[string]bool, len(cfg.ConfirmRequired))
	for _, code := range cfg.ConfirmRequired {
		confirm[strings.ToUpper(strings.TrimSpace(code))] = true
	}

	e := &Engine{
		resolver:   NewResolver(deps.Entities),
		mutator:    NewMutator(now),
		gateway:    NewGateway(deps.Evaluator, cfg.Policy, cfg.EvaluatorTimeout, metrics),
		store:      deps.Entities,
		tokens:     deps.Tokens,
		mutations:  deps.Mutations,
		uow:        deps.UoW,
		metrics:    metrics,
		now:        now,
		newToken:   newToken,
		ttl:        ttl,
		confirm:    confirm,
		operations: make(map[string]Operation),
	}
	e.Register(Operation{Name: OperationUpdate, Action: intent.ActionUpdated})
	return e
}

// Register adds or replaces an operation.
func (e *Engine) Register(op Operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operations[strings.ToUpper(op.Name)] = op
}

func (e *Engine) operation(name string) (Operation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	op, ok := e.operations[strings.ToUpper(name)]
	if !ok {
		return Operation{}, intent.NewUnsupportedOperationError(name)
	}
	return op, nil
}

// RequiresConfirmation reports whether intentCode's commit path must go
// through a confirmation token.
func (e *Engine) RequiresConfirmation(intentCode string) bool {
	return e.confirm[strings.ToUpper(intentCode)]
}

// Resolver exposes the entity resolver for read-only handlers.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// History lists committed mutation records of one entity, newest first.
func (e *Engine) History(ctx context.Context, ref intent.Reference, limit int) ([]intent.MutationRecord, error) {
	if e.mutations == nil {
		return nil, nil
	}
	ent, _, err := e.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	recs, err := e.mutations.ListByEntity(ctx, ent.EntityType(), ent.EntityID(), limit)
	if err != nil {
		return nil, intent.NewInternalError("history lookup", err)
	}
	return recs, nil
}

// ============================================================================
// Shared steps
// ============================================================================

// staged Resolved and validated change, ready to apply
type staged struct {
	entity  intent.Entity
	repo    intent.EntityRepository
	op      Operation
	plan    *Plan
	current map[string]any
	result  intent.ValidationResult
}

// stage resolves, plans and validates a change. A rejected validation is
// returned in the result, not as an error.
func (e *Engine) stage(ctx context.Context, req intent.Request, ch Change) (*staged, error) {
	op, err := e.operation(ch.Operation)
	if err != nil {
		return nil, err
	}
	if len(ch.Updates) == 0 {
		return nil, intent.NewMissingFieldsError(intent.KeyUpdates)
	}

	ent, repo, err := e.resolver.Resolve(ctx, ch.Target)
	if err != nil {
		return nil, err
	}
	if !op.allows(ent.EntityType()) {
		return nil, intent.NewUnsupportedOperationError(fmt.Sprintf("%s on %s", op.Name, ent.EntityType()))
	}

	updates := ch.Updates
	if op.Derive != nil {
		if updates, err = op.Derive(ent, ch.Updates); err != nil {
			return nil, err
		}
	}
	plan, err := e.mutator.Plan(repo.Schema(), updates)
	if err != nil {
		return nil, err
	}

	current := repo.Schema().Snapshot(ent)
	fact, err := e.buildFact(ctx, repo, ent, req.Category, op, ch.Updates, plan, current)
	if err != nil {
		return nil, err
	}
	result := e.gateway.Validate(ctx, req.Category, fact, req.Actor)

	return &staged{entity: ent, repo: repo, op: op, plan: plan, current: current, result: result}, nil
}

// commit applies a staged change and appends its audit record. Must run
// inside the unit of work that staged it.
func (e *Engine) commit(ctx context.Context, req intent.Request, s *staged) (intent.MutationRecord, error) {
	if !s.result.Valid {
		return intent.MutationRecord{}, &intent.ValidationError{Result: s.result}
	}
	rec, err := e.mutator.Apply(ctx, s.repo, s.entity, s.plan, s.op.Action, req.Actor)
	if err != nil {
		return intent.MutationRecord{}, err
	}
	rec.IntentCode = req.IntentCode
	if e.mutations != nil {
		if err := e.mutations.Append(ctx, &rec); err != nil {
			return intent.MutationRecord{}, intent.NewInternalError("audit append", err)
		}
	}
	return rec, nil
}
