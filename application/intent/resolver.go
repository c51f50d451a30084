package intent

import (
	"context"
	"errors"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// Resolver Turns a loosely typed entity reference into one live entity
type Resolver struct {
	store *intent.EntityStore
}

// NewResolver Create resolver over the registered entity repositories
func NewResolver(store *intent.EntityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks the reference up. The identifier is tried as a primary key
// first and, on a miss, as a business key; an explicit business key is tried
// last. At most one entity is returned.
func (r *Resolver) Resolve(ctx context.Context, ref intent.Reference) (intent.Entity, intent.EntityRepository, error) {
	t, err := intent.ParseEntityType(ref.Type)
	if err != nil {
		return nil, nil, err
	}
	repo, err := r.store.Repository(t)
	if err != nil {
		return nil, nil, err
	}
	if !ref.HasKey() {
		return nil, nil, intent.NewAmbiguousReferenceError(t)
	}

	type attempt struct {
		key  string
		find func(context.Context, string) (intent.Entity, error)
	}
	var attempts []attempt
	if ref.ID != "" {
		attempts = append(attempts,
			attempt{ref.ID, repo.FindByID},
			attempt{ref.ID, repo.FindByBusinessKey})
	}
	if ref.BusinessKey != "" && ref.BusinessKey != ref.ID {
		attempts = append(attempts, attempt{ref.BusinessKey, repo.FindByBusinessKey})
	}

	for _, a := range attempts {
		e, err := a.find(ctx, a.key)
		if err == nil {
			return e, repo, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			logger.Error("Entity lookup failed",
				zap.String("entity_type", string(t)),
				zap.String("key", a.key),
				zap.Error(err))
			return nil, nil, intent.NewInternalError("entity lookup", err)
		}
	}
	return nil, nil, intent.NewNotFoundError(t, ref.Key())
}
