/*
Package mocks In-memory persistence used by the "mock" database type and by
engine tests.

One Store holds every table. A transaction locks the store, works on a deep
copy of its state and swaps the copy in on commit, so a failed transaction
leaves nothing behind and transactions are fully serialized. Calls made
outside a transaction lock the store for the duration of the call only.
*/
package mocks

import (
	"context"
	"sync"

	"factoryops/domain/factory"
	"factoryops/domain/intent"
	"factoryops/domain/shared"
)

type table[E any] struct {
	rows  map[string]E
	idOf  func(E) string
	keyOf func(E) string
	clone func(E) E
}

func newTable[E any](idOf, keyOf func(E) string, clone func(E) E) *table[E] {
	return &table[E]{rows: make(map[string]E), idOf: idOf, keyOf: keyOf, clone: clone}
}

func (t *table[E]) copy() *table[E] {
	out := newTable(t.idOf, t.keyOf, t.clone)
	for k, v := range t.rows {
		out.rows[k] = t.clone(v)
	}
	return out
}

func (t *table[E]) byID(id string) (E, bool) {
	v, ok := t.rows[id]
	if !ok {
		var zero E
		return zero, false
	}
	return t.clone(v), true
}

func (t *table[E]) byKey(key string) (E, bool) {
	for _, v := range t.rows {
		if t.keyOf(v) == key {
			return t.clone(v), true
		}
	}
	var zero E
	return zero, false
}

func (t *table[E]) put(v E) {
	t.rows[t.idOf(v)] = t.clone(v)
}

func (t *table[E]) count(match func(E) bool) int64 {
	var n int64
	for _, v := range t.rows {
		if match(v) {
			n++
		}
	}
	return n
}

type state struct {
	productTypes *table[*factory.ProductType]
	plans        *table[*factory.ProductionPlan]
	batches      *table[*factory.ProductionBatch]
	materials    *table[*factory.MaterialBatch]
	tokens       map[string]intent.PreviewToken
	mutations    []intent.MutationRecord
}

func newState() *state {
	return &state{
		productTypes: newTable(
			func(p *factory.ProductType) string { return p.ID },
			func(p *factory.ProductType) string { return p.Code },
			func(p *factory.ProductType) *factory.ProductType { c := *p; return &c }),
		plans: newTable(
			func(p *factory.ProductionPlan) string { return p.ID },
			func(p *factory.ProductionPlan) string { return p.PlanNumber },
			func(p *factory.ProductionPlan) *factory.ProductionPlan { c := *p; return &c }),
		batches: newTable(
			func(b *factory.ProductionBatch) string { return b.ID },
			func(b *factory.ProductionBatch) string { return b.BatchNumber },
			func(b *factory.ProductionBatch) *factory.ProductionBatch { c := *b; return &c }),
		materials: newTable(
			func(m *factory.MaterialBatch) string { return m.ID },
			func(m *factory.MaterialBatch) string { return m.BatchNumber },
			func(m *factory.MaterialBatch) *factory.MaterialBatch { c := *m; return &c }),
		tokens: make(map[string]intent.PreviewToken),
	}
}

func (s *state) copy() *state {
	out := &state{
		productTypes: s.productTypes.copy(),
		plans:        s.plans.copy(),
		batches:      s.batches.copy(),
		materials:    s.materials.copy(),
		tokens:       make(map[string]intent.PreviewToken, len(s.tokens)),
		mutations:    append([]intent.MutationRecord(nil), s.mutations...),
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	return out
}

// Failure kinds accepted by Store.Fail.
const (
	FailEntities  = "entities"
	FailTokens    = "tokens"
	FailMutations = "mutations"
)

// Store In-memory backing for every repository in this package
type Store struct {
	mu    sync.Mutex
	state *state

	failMu   sync.RWMutex
	failures map[string]error
}

// NewStore returns an empty store. Use Seed for demo data.
func NewStore() *Store {
	return &Store{state: newState(), failures: make(map[string]error)}
}

// Fail makes every call of the given kind return err until cleared with nil.
func (s *Store) Fail(kind string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failures, kind)
		return
	}
	s.failures[kind] = err
}

func (s *Store) failure(kind string) error {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return s.failures[kind]
}

type txKey struct{}

type memTx struct {
	store *Store
	state *state
}

func (s *Store) txFrom(ctx context.Context) *memTx {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.store == s {
		return tx
	}
	return nil
}

// do runs fn against the transaction's state when ctx carries one, otherwise
// against the committed state under the store lock.
func (s *Store) do(ctx context.Context, kind string, fn func(st *state) error) error {
	if err := s.failure(kind); err != nil {
		return err
	}
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// runInTransaction locks the store, clones state and swaps it in when fn
// succeeds. Nested calls join the outer transaction.
func (s *Store) runInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, state: s.state.copy()}
	if err := fn(shared.MarkInTransaction(context.WithValue(ctx, txKey{}, tx))); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}
