// Package redact applies regex-based redaction to query result cells
// before they are rendered into the text returned to the agent.
package redact

import (
	"fmt"
	"regexp"
)

// Rule replaces every match of Pattern with Replacement.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor applies the configured rules to string cells.
type Redactor struct {
	rules []compiledRule
}

// NewRedactor compiles the rule patterns. Returns an error on an invalid
// regex so bad configuration is caught at startup.
func NewRedactor(rules []Rule) (*Redactor, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Redactor{rules: compiled}, nil
}

// HasRules reports whether any rule is configured.
func (r *Redactor) HasRules() bool {
	return len(r.rules) > 0
}

// Cell applies all rules to a single stringified cell value.
func (r *Redactor) Cell(value string) string {
	for _, rule := range r.rules {
		value = rule.pattern.ReplaceAllString(value, rule.replacement)
	}
	return value
}

// Rows applies all rules in place to every cell of the given rows and
// returns them for chaining.
func (r *Redactor) Rows(rows [][]string) [][]string {
	if len(r.rules) == 0 {
		return rows
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = r.Cell(cell)
		}
	}
	return rows
}
