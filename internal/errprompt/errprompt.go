// Package errprompt appends configured guidance to database error messages
// so the calling agent can observe the failure and adapt its next query.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error-message pattern to a guidance message.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher evaluates error messages against the configured rules.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles the rule patterns. Returns an error on an invalid
// regex so bad configuration is caught at startup, not per query.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Evaluate checks errMsg against every rule, top to bottom. It returns the
// matching guidance messages joined by newlines (empty string when nothing
// matched) and the patterns that matched, for logging.
func (m *Matcher) Evaluate(errMsg string) (guidance string, patterns []string) {
	var messages []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			messages = append(messages, rule.message)
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return strings.Join(messages, "\n"), patterns
}
