/*
Package rules Declarative rule evaluator backing the validation gateway.

Rules live in YAML grouped by rule set ("data_op", "material"). A rule fires
when every condition in its When list holds against the OperationFact; its
Then clause becomes a violation or a recommendation. Message and Hint may
reference fact paths with {{path}}.
*/
package rules

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Evaluator intent.RuleEvaluator over a parsed rule file
type Evaluator struct {
	groups map[string][]Rule
	now    func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock sets the time source used by before_now / after_now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// Parse decodes and validates a YAML rule file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Check parses the file at path and reports the first problem found.
func Check(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data)
}

// New builds an evaluator. Rules within a group run by descending salience,
// then file order.
func New(f *File, opts ...Option) *Evaluator {
	e := &Evaluator{groups: make(map[string][]Rule, len(f.Groups)), now: time.Now}
	for name, set := range f.Groups {
		rules := append([]Rule(nil), set.Rules...)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Salience > rules[j].Salience })
		e.groups[strings.ToLower(name)] = rules
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Default returns an evaluator over the built-in rules.
func Default(opts ...Option) (*Evaluator, error) {
	f, err := Parse(defaultRules)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

// LoadFile returns an evaluator over the rules at path, or the built-in rules
// when path is empty.
func LoadFile(path string, opts ...Option) (*Evaluator, error) {
	if path == "" {
		return Default(opts...)
	}
	f, err := Check(path)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

// Groups lists the loaded rule groups.
func (e *Evaluator) Groups() []string {
	out := make([]string, 0, len(e.groups))
	for name := range e.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Evaluate runs the group's rules. A group with no rules accepts.
func (e *Evaluator) Evaluate(ctx context.Context, group string, fact intent.OperationFact, actor intent.Actor) (intent.ValidationResult, error) {
	rules, ok := e.groups[strings.ToLower(group)]
	if !ok {
		logger.Debug("No rules for group", zap.String("group", group))
		return intent.Accepted(), nil
	}

	env := environment{fact: fact, actor: actor, now: e.now().UTC()}
	var (
		violations      []intent.Violation
		recommendations []string
	)
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return intent.ValidationResult{}, err
		}
		if !env.matches(r.When) {
			continue
		}
		msg := env.render(r.Then.Message)
		if r.Then.Severity == severityRecommend {
			recommendations = append(recommendations, msg)
			continue
		}
		violations = append(violations, intent.Violation{
			Rule:     r.Name,
			Message:  msg,
			Severity: intent.Severity(r.Then.Severity),
			Field:    r.Then.Field,
			Hint:     env.render(r.Then.Hint),
		})
	}
	return intent.NewValidationResult(violations, recommendations), nil
}

// ============================================================================
// Condition evaluation
// ============================================================================

type environment struct {
	fact  intent.OperationFact
	actor intent.Actor
	now   time.Time
}

func (env environment) lookup(path string) (any, bool) {
	switch path {
	case "actor.id":
		return env.actor.ID, env.actor.ID != ""
	case "actor.role":
		return env.actor.Role, env.actor.Role != ""
	}
	return env.fact.Lookup(path)
}

func (env environment) matches(conds []Condition) bool {
	for _, c := range conds {
		if !env.holds(c) {
			return false
		}
	}
	return true
}

func (env environment) holds(c Condition) bool {
	left, found := env.lookup(c.Field)
	present := found && !empty(left)

	switch c.Operator {
	case "exists":
		return present
	case "not_exists":
		return !present
	}
	if !present {
		return false
	}

	switch c.Operator {
	case "before_now", "after_now":
		t, ok := asTime(left)
		if !ok {
			return false
		}
		if c.Operator == "before_now" {
			return t.Before(env.now)
		}
		return t.After(env.now)
	}

	right := c.Value
	if c.ValueFrom != "" {
		v, ok := env.lookup(c.ValueFrom)
		if !ok {
			return false
		}
		right = v
	}

	switch c.Operator {
	case "in", "not_in":
		list, ok := right.([]any)
		if !ok {
			return false
		}
		hit := false
		for _, item := range list {
			if equal(left, item) {
				hit = true
				break
			}
		}
		return hit == (c.Operator == "in")
	case "==":
		return equal(left, right)
	case "!=":
		return !equal(left, right)
	}

	cmp, ok := compare(left, right)
	if !ok {
		return false
	}
	switch c.Operator {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func equal(a, b any) bool {
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return strings.EqualFold(fmt.Sprint(a), fmt.Sprint(b))
}

// compare orders two values numerically when both are numbers and
// chronologically when both are times.
func compare(a, b any) (int, bool) {
	if da, ok := asDecimal(a); ok {
		if db, ok := asDecimal(b); ok {
			return da.Cmp(db), true
		}
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	}
	if s, ok := v.(fmt.Stringer); ok {
		d, err := decimal.NewFromString(s.String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		if _, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
			return time.Time{}, false
		}
		t, err := intent.CoerceDateTime(x)
		return t, err == nil
	}
	return time.Time{}, false
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

func (env environment) render(tmpl string) string {
	if tmpl == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		v, ok := env.lookup(path)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

var _ intent.RuleEvaluator = (*Evaluator)(nil)
