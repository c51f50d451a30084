package rules

import (
	"fmt"
	"strings"

	"factoryops/domain/intent"
)

// File Rule groups by name, usually loaded from YAML.
type File struct {
	Groups map[string]RuleSet `yaml:"groups"`
}

// RuleSet Rules evaluated together for one category.
type RuleSet struct {
	Description string `yaml:"description,omitempty"`
	Rules       []Rule `yaml:"rules"`
}

// Rule fires Then when every condition in When holds.
type Rule struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Salience    int         `yaml:"salience,omitempty"` // higher runs first
	When        []Condition `yaml:"when"`
	Then        Action      `yaml:"then"`
}

// Condition compares a fact path. Field and ValueFrom are both OperationFact paths.
type Condition struct {
	Field     string `yaml:"field"`
	Operator  string `yaml:"operator"`
	Value     any    `yaml:"value,omitempty"`
	ValueFrom string `yaml:"value_from,omitempty"`
}

// Action Outcome of a fired rule.
// Severity "block" rejects, "warn" reports, "recommend" only adds Message to
// the recommendations.
type Action struct {
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	Field    string `yaml:"field,omitempty"`
	Hint     string `yaml:"hint,omitempty"`
}

const severityRecommend = "recommend"

var operators = map[string]bool{
	"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"in": true, "not_in": true, "exists": true, "not_exists": true,
	"before_now": true, "after_now": true,
}

// Validate reports every structural problem in the file.
func (f *File) Validate() error {
	var problems []string
	if len(f.Groups) == 0 {
		problems = append(problems, "no rule groups defined")
	}
	for group, set := range f.Groups {
		seen := make(map[string]bool)
		for i, r := range set.Rules {
			where := fmt.Sprintf("%s.rules[%d]", group, i)
			if r.Name == "" {
				problems = append(problems, where+": name is required")
			} else if seen[r.Name] {
				problems = append(problems, where+": duplicate rule name "+r.Name)
			}
			seen[r.Name] = true
			if len(r.When) == 0 {
				problems = append(problems, where+": at least one condition is required")
			}
			for j, c := range r.When {
				if c.Field == "" {
					problems = append(problems, fmt.Sprintf("%s.when[%d]: field is required", where, j))
				}
				if !operators[c.Operator] {
					problems = append(problems, fmt.Sprintf("%s.when[%d]: unknown operator %q", where, j, c.Operator))
				}
				if (c.Operator == "in" || c.Operator == "not_in") && c.ValueFrom == "" {
					if _, ok := c.Value.([]any); !ok {
						problems = append(problems, fmt.Sprintf("%s.when[%d]: %s needs a list value", where, j, c.Operator))
					}
				}
			}
			switch r.Then.Severity {
			case string(intent.SeverityBlock), string(intent.SeverityWarn), severityRecommend:
			default:
				problems = append(problems, fmt.Sprintf("%s: unknown severity %q", where, r.Then.Severity))
			}
			if strings.TrimSpace(r.Then.Message) == "" {
				problems = append(problems, where+": message is required")
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid rule file:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
