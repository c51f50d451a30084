package intent

import (
	"context"
	"fmt"
	"sort"
)

// TypedRepository Data access for one concrete entity type. Lookups return an
// error wrapping shared.ErrNotFound on a miss.
type TypedRepository[T Entity] interface {
	FindByID(ctx context.Context, id string) (T, error)
	FindByBusinessKey(ctx context.Context, key string) (T, error)
	Save(ctx context.Context, entity T) error
}

// Counter Named related-record count for the operation fact, e.g.
// "productionBatches" of a product type.
type Counter struct {
	Name  string
	Count func(ctx context.Context, e Entity) (int64, error)
}

// Count declares a typed counter.
func Count[T Entity](name string, fn func(ctx context.Context, e T) (int64, error)) Counter {
	return Counter{
		Name: name,
		Count: func(ctx context.Context, e Entity) (int64, error) {
			t, ok := e.(T)
			if !ok {
				return 0, fmt.Errorf("counter %s: unexpected entity %T", name, e)
			}
			return fn(ctx, t)
		},
	}
}

// EntityRepository Type-erased entity store for one entity type, as used by
// the resolver and the mutator.
type EntityRepository interface {
	Schema() *Schema
	FindByID(ctx context.Context, id string) (Entity, error)
	FindByBusinessKey(ctx context.Context, key string) (Entity, error)
	Save(ctx context.Context, e Entity) error
	Counters() []Counter
}

// Bind erases the type of a typed repository.
func Bind[T Entity](schema *Schema, repo TypedRepository[T], counters ...Counter) EntityRepository {
	return &boundRepository[T]{schema: schema, repo: repo, counters: counters}
}

type boundRepository[T Entity] struct {
	schema   *Schema
	repo     TypedRepository[T]
	counters []Counter
}

func (b *boundRepository[T]) Schema() *Schema { return b.schema }

func (b *boundRepository[T]) FindByID(ctx context.Context, id string) (Entity, error) {
	e, err := b.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (b *boundRepository[T]) FindByBusinessKey(ctx context.Context, key string) (Entity, error) {
	e, err := b.repo.FindByBusinessKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (b *boundRepository[T]) Save(ctx context.Context, e Entity) error {
	t, ok := e.(T)
	if !ok {
		return fmt.Errorf("save %s: unexpected entity %T", b.schema.Type(), e)
	}
	return b.repo.Save(ctx, t)
}

func (b *boundRepository[T]) Counters() []Counter {
	return append([]Counter(nil), b.counters...)
}

// EntityStore Registry of entity repositories keyed by entity type
type EntityStore struct {
	repos map[EntityType]EntityRepository
}

func NewEntityStore(repos ...EntityRepository) *EntityStore {
	s := &EntityStore{repos: make(map[EntityType]EntityRepository, len(repos))}
	for _, r := range repos {
		s.repos[r.Schema().Type()] = r
	}
	return s
}

// Repository returns the repository for t, or an UnknownEntityType error
// when nothing is registered for it.
func (s *EntityStore) Repository(t EntityType) (EntityRepository, error) {
	r, ok := s.repos[t]
	if !ok {
		return nil, NewUnknownEntityTypeError(string(t))
	}
	return r, nil
}

// Types lists the registered entity types, sorted.
func (s *EntityStore) Types() []EntityType {
	out := make([]EntityType, 0, len(s.repos))
	for t := range s.repos {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MutationLog Append-only audit of committed mutation records
type MutationLog interface {
	Append(ctx context.Context, rec *MutationRecord) error
	ListByEntity(ctx context.Context, t EntityType, id string, limit int) ([]MutationRecord, error)
}
