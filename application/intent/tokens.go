package intent

import (
	"context"
	"errors"
	"time"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func randomToken() string {
	return uuid.NewString()
}

// PreviewResult Dry run of a change, parked behind a confirmation token
type PreviewResult struct {
	Token      *intent.PreviewToken
	Validation intent.ValidationResult
	EntityName string
	Current    map[string]any
	Proposed   map[string]any
	Skipped    []string
}

// Preview resolves and validates a change without applying it and issues a
// confirmation token for it. A rejected validation returns
// *intent.ValidationError and no token. When the token store is unavailable
// the token is ephemeral: shown to the caller but never confirmable.
func (e *Engine) Preview(ctx context.Context, req intent.Request, ch Change) (PreviewResult, error) {
	if len(ch.Updates) == 0 {
		return PreviewResult{}, intent.NewMissingFieldsError(intent.KeyUpdates)
	}

	s, err := e.stage(ctx, req, ch)
	if err != nil {
		return PreviewResult{}, err
	}
	out := PreviewResult{
		Validation: s.result,
		EntityName: s.entity.DisplayName(),
		Current:    s.current,
		Proposed:   s.plan.Proposed(),
		Skipped:    s.plan.Skipped(),
	}
	if !s.result.Valid {
		return out, &intent.ValidationError{Result: s.result}
	}
	if s.plan.Empty() {
		return out, intent.NewInvalidFieldValueError(intent.KeyUpdates, errors.New("no known fields to change"))
	}

	now := e.now().UTC()
	tok := &intent.PreviewToken{
		Value: e.newToken(),
		Owner: req.Actor.ID,
		Target: intent.Reference{
			Type: string(s.entity.EntityType()),
			ID:   s.entity.EntityID(),
		},
		EntityType: s.entity.EntityType(),
		EntityID:   s.entity.EntityID(),
		Category:   req.Category,
		IntentCode: req.IntentCode,
		Operation:  s.op.Name,
		Action:     s.op.Action,
		Payload:    copyContext(req.Context),
		Snapshot:   s.current,
		Proposed:   append(intent.FieldUpdates(nil), ch.Updates...),
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.ttl),
		State:      intent.TokenPending,
	}

	if err := e.tokens.Create(ctx, tok); err != nil {
		tok.Ephemeral = true
		logger.Warn("Token store unavailable, issuing informational preview",
			zap.String("intent_code", req.IntentCode),
			zap.String("entity_id", tok.EntityID),
			zap.Error(err))
	} else {
		logger.Info("Confirmation token issued",
			zap.String("intent_code", req.IntentCode),
			zap.String("entity_type", string(tok.EntityType)),
			zap.String("entity_id", tok.EntityID),
			zap.String("owner", tok.Owner),
			zap.Time("expires_at", tok.ExpiresAt))
	}
	e.metrics.TokenIssued(tok.Ephemeral)

	out.Token = tok
	return out, nil
}

// ConfirmResult Committed change of a confirmed token
type ConfirmResult struct {
	Result
	Token *intent.PreviewToken
}

// Confirm consumes a token and commits its change against the live entity.
//
// A missing token, or one owned by another actor, is TokenNotFound. A consumed
// token is TokenAlreadyUsed however late the retry. A pending token past its
// expiry is moved to EXPIRED and reported as TokenExpired. Consumption is a compare-and-swap
// inside the same unit of work as the mutation, so of two concurrent confirms
// exactly one commits and the other observes TokenAlreadyUsed. When
// revalidation rejects the change nothing is committed and the token stays
// pending until it expires.
func (e *Engine) Confirm(ctx context.Context, value string, actor intent.Actor) (ConfirmResult, error) {
	now := e.now().UTC()

	tok, err := e.tokens.Find(ctx, value)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.metrics.TokenSettled(tokenNotFound)
			return ConfirmResult{}, intent.NewTokenNotFoundError()
		}
		return ConfirmResult{}, intent.NewInternalError("token lookup", err)
	}
	out := ConfirmResult{Token: tok}

	if tok.Owner != "" && tok.Owner != actor.ID {
		logger.Warn("Confirmation attempted by non-owner",
			zap.String("owner", tok.Owner),
			zap.String("actor", actor.ID))
		e.metrics.TokenSettled(tokenNotFound)
		return ConfirmResult{}, intent.NewTokenNotFoundError()
	}
	if tok.State == intent.TokenConsumed {
		e.metrics.TokenSettled(tokenAlreadyUsed)
		return out, intent.NewTokenAlreadyUsedError()
	}
	if tok.ExpiredAt(now) {
		if tok.State == intent.TokenPending {
			if _, err := e.tokens.Expire(ctx, value, now); err != nil {
				logger.Warn("Failed to mark token expired", zap.Error(err))
			}
		}
		e.metrics.TokenSettled(tokenExpired)
		return out, intent.NewTokenExpiredError()
	}
	if tok.State != intent.TokenPending {
		e.metrics.TokenSettled(tokenAlreadyUsed)
		return out, intent.NewTokenAlreadyUsedError()
	}

	req := intent.Request{
		IntentCode: tok.IntentCode,
		Category:   tok.Category,
		Context:    copyContext(tok.Payload),
		Actor:      actor,
	}
	ch := Change{Target: tok.Target, Operation: tok.Operation, Updates: tok.Proposed}

	err = e.uow.Execute(ctx, func(ctx context.Context) error {
		won, err := e.tokens.Consume(ctx, value, now)
		if err != nil {
			return intent.NewInternalError("token consume", err)
		}
		if !won {
			return intent.NewTokenAlreadyUsedError()
		}

		s, err := e.stage(ctx, req, ch)
		if err != nil {
			return err
		}
		out.Validation = s.result
		rec, err := e.commit(ctx, req, s)
		if err != nil {
			return err
		}
		out.Record = rec
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, intent.ErrTokenAlreadyUsed):
			e.metrics.TokenSettled(tokenAlreadyUsed)
		default:
			e.metrics.TokenSettled(tokenRejected)
		}
		return out, err
	}

	e.metrics.TokenSettled(tokenConsumed)
	logger.Info("Confirmation token consumed",
		zap.String("intent_code", tok.IntentCode),
		zap.String("entity_type", string(out.Record.EntityType)),
		zap.String("entity_id", out.Record.EntityID),
		zap.String("action", string(out.Record.Action)),
		zap.String("actor", actor.ID))
	return out, nil
}

// PruneTokens deletes tokens that expired or were consumed more than
// olderThan ago.
func (e *Engine) PruneTokens(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := e.now().UTC().Add(-olderThan)
	n, err := e.tokens.Prune(ctx, cutoff)
	if err != nil {
		return 0, intent.NewInternalError("token prune", err)
	}
	logger.Info("Pruned confirmation tokens", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	return n, nil
}

func copyContext(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
