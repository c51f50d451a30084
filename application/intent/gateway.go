package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// DefaultEvaluatorTimeout bounds one rule evaluation when none is configured.
const DefaultEvaluatorTimeout = 3 * time.Second

// errEvaluatorTimeout is reported when the evaluator misses its deadline.
var errEvaluatorTimeout = errors.New("rule evaluator timed out")

// Gateway Validation gateway: every mutation passes through Validate before
// the mutator runs
type Gateway struct {
	evaluator intent.RuleEvaluator
	policy    intent.ValidationPolicy
	timeout   time.Duration
	metrics   Metrics
}

// NewGateway Create validation gateway. A nil evaluator accepts everything.
func NewGateway(evaluator intent.RuleEvaluator, policy intent.ValidationPolicy, timeout time.Duration, metrics Metrics) *Gateway {
	if policy == "" {
		policy = intent.FailOpen
	}
	if timeout <= 0 {
		timeout = DefaultEvaluatorTimeout
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Gateway{evaluator: evaluator, policy: policy, timeout: timeout, metrics: metrics}
}

// Policy returns the policy applied when the evaluator fails.
func (g *Gateway) Policy() intent.ValidationPolicy { return g.policy }

// RuleGroup derives the rule group name from an intent category.
func RuleGroup(c intent.Category) string {
	return strings.ToLower(string(c))
}

// Validate evaluates fact with the category's rule group. It never returns an
// error: an evaluator failure or timeout is settled by the policy and the
// result is marked Degraded.
func (g *Gateway) Validate(ctx context.Context, category intent.Category, fact intent.OperationFact, actor intent.Actor) intent.ValidationResult {
	if g.evaluator == nil {
		return intent.Accepted()
	}
	group := RuleGroup(category)

	start := time.Now()
	res, err := g.evaluate(ctx, group, fact, actor)
	took := time.Since(start)

	if err != nil {
		g.metrics.ObserveValidation(group, "error", took)
		return g.degrade(group, fact, err)
	}

	outcome := "valid"
	if !res.Valid {
		outcome = "rejected"
	}
	g.metrics.ObserveValidation(group, outcome, took)
	logger.Debug("Validation finished",
		zap.String("group", group),
		zap.String("entity_type", string(fact.EntityType())),
		zap.String("entity_id", fact.EntityID()),
		zap.Bool("valid", res.Valid),
		zap.Int("violations", len(res.Violations)),
		zap.Duration("took", took))
	return res
}

// evaluate runs the evaluator with a deadline. The call runs in its own
// goroutine so an evaluator that ignores its context cannot hold the caller
// past the timeout; it recovers panics into errors.
func (g *Gateway) evaluate(ctx context.Context, group string, fact intent.OperationFact, actor intent.Actor) (intent.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		res intent.ValidationResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("rule evaluator panic: %v", r)}
			}
		}()
		res, err := g.evaluator.Evaluate(ctx, group, fact, actor)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return intent.ValidationResult{}, errEvaluatorTimeout
		}
		return intent.ValidationResult{}, ctx.Err()
	}
}

func (g *Gateway) degrade(group string, fact intent.OperationFact, err error) intent.ValidationResult {
	g.metrics.ValidationDegraded(group, g.policy)
	fields := []zap.Field{
		zap.String("group", group),
		zap.String("policy", string(g.policy)),
		zap.String("entity_type", string(fact.EntityType())),
		zap.String("entity_id", fact.EntityID()),
		zap.Error(err),
	}

	if g.policy == intent.FailClosed {
		logger.Error("Rule evaluator unavailable, rejecting operation", fields...)
		res := intent.NewValidationResult([]intent.Violation{{
			Rule:     "rule_evaluator_unavailable",
			Message:  "business rules could not be checked, the operation was not applied",
			Severity: intent.SeverityBlock,
			Hint:     "try again in a moment",
		}}, nil)
		res.Degraded = true
		return res
	}

	logger.Warn("Rule evaluator unavailable, allowing operation", fields...)
	res := intent.Accepted()
	res.Degraded = true
	return res
}
