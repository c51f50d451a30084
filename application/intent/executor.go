package intent

import (
	"context"

	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// Result What a committed change produced
type Result struct {
	Record     intent.MutationRecord
	Validation intent.ValidationResult
}

// Execute commits a change immediately: resolve, validate and mutate inside
// one unit of work. A rejected validation returns *intent.ValidationError
// with the result filled in.
func (e *Engine) Execute(ctx context.Context, req intent.Request, ch Change) (Result, error) {
	if len(ch.Updates) == 0 {
		return Result{}, intent.NewMissingFieldsError(intent.KeyUpdates)
	}

	var res Result
	err := e.uow.Execute(ctx, func(ctx context.Context) error {
		s, err := e.stage(ctx, req, ch)
		if err != nil {
			return err
		}
		res.Validation = s.result
		rec, err := e.commit(ctx, req, s)
		if err != nil {
			return err
		}
		res.Record = rec
		return nil
	})
	if err != nil {
		return res, err
	}

	logger.Info("Mutation committed",
		zap.String("intent_code", req.IntentCode),
		zap.String("entity_type", string(res.Record.EntityType)),
		zap.String("entity_id", res.Record.EntityID),
		zap.String("action", string(res.Record.Action)),
		zap.Strings("fields", res.Record.Fields()),
		zap.String("actor", req.Actor.ID))
	return res, nil
}
