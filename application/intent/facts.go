package intent

import (
	"context"
	"sync"

	"factoryops/domain/intent"
	"factoryops/domain/shared"

	"golang.org/x/sync/errgroup"
)

// buildFact assembles the operation fact for one staged change. Related
// record counts are gathered concurrently outside a transaction and one at a
// time inside one.
func (e *Engine) buildFact(
	ctx context.Context,
	repo intent.EntityRepository,
	ent intent.Entity,
	category intent.Category,
	op Operation,
	raw intent.FieldUpdates,
	plan *Plan,
	current map[string]any,
) (intent.OperationFact, error) {
	related, err := countRelated(ctx, repo, ent)
	if err != nil {
		return intent.OperationFact{}, intent.NewInternalError("related record count", err)
	}

	proposed := make(map[string]any, len(current))
	for k, v := range current {
		proposed[k] = v
	}
	for k, v := range plan.Proposed() {
		proposed[k] = v
	}

	var currentStatus string
	if acc, ok := repo.Schema().StatusField(); ok {
		if s, ok := current[acc.Name()].(string); ok {
			currentStatus = s
		}
	}

	return intent.NewOperationFact(intent.FactInput{
		EntityType:    ent.EntityType(),
		EntityID:      ent.EntityID(),
		EntityName:    ent.DisplayName(),
		Operation:     op.Name,
		Category:      category,
		CurrentStatus: currentStatus,
		TargetStatus:  plan.TargetStatus(),
		Related:       related,
		Updates:       raw,
		Proposed:      proposed,
		Current:       current,
	}), nil
}

func countRelated(ctx context.Context, repo intent.EntityRepository, ent intent.Entity) (map[string]int64, error) {
	counters := repo.Counters()
	related := make(map[string]int64, len(counters))
	if len(counters) == 0 {
		return related, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if shared.InTransaction(ctx) {
		// one transaction is one connection; the MySQL driver cannot interleave queries on it
		g.SetLimit(1)
	}
	for _, c := range counters {
		g.Go(func() error {
			n, err := c.Count(gctx, ent)
			if err != nil {
				return err
			}
			mu.Lock()
			related[c.Name] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return related, nil
}
