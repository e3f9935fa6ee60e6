// Package gateway classifies raw SQL text before execution.
//
// It is a fast heuristic pre-filter, not a provable security boundary:
// keywords are matched on word boundaries over the raw text, comments are
// NOT stripped (a keyword inside a SQL comment still triggers), and the
// injection patterns are correlation heuristics. Callers that need hard
// guarantees must rely on database-level privileges.
package gateway

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mutating keyword vocabulary. Multi-word entries come first so the
// alternation prefers the longer match.
var mutatingKeywords = []string{
	// Metadata changes
	"COMMENT ON",
	"SECURITY LABEL",
	// Extensions and functions
	"CREATE EXTENSION",
	"CREATE FUNCTION",
	"INSTALL",
	// DML
	"INSERT",
	"UPDATE",
	"DELETE",
	"MERGE",
	"TRUNCATE",
	// DDL
	"CREATE",
	"DROP",
	"ALTER",
	"RENAME",
	// Permissions
	"GRANT",
	"REVOKE",
	// Storage-level
	"CLUSTER",
	"REINDEX",
	"VACUUM",
	"ANALYZE",
}

var mutatingPattern = regexp.MustCompile(
	`(?i)\b(` + strings.Join(mutatingKeywords, "|") + `)\b`,
)

// injectionRule is one suspicious-pattern category. Categories are evaluated
// in order and evaluation stops at the first match, so a query yields at
// most one issue no matter how many categories it trips.
type injectionRule struct {
	kind    string
	pattern *regexp.Regexp
}

var injectionRules = []injectionRule{
	{"tautology_numeric", regexp.MustCompile(`(?i)\bor\b\s+\d+\s*=\s*\d+`)},
	{"tautology_string", regexp.MustCompile(`(?i)\bor\b\s*'[^']+'\s*=\s*'[^']+'`)},
	{"drop", regexp.MustCompile(`(?i)\bdrop\b`)},
	{"truncate", regexp.MustCompile(`(?i)\btruncate\b`)},
	{"privilege", regexp.MustCompile(`(?i)\bgrant\b|\brevoke\b`)},
	{"time_probe", regexp.MustCompile(`(?i)\bsleep\s*\(|\bpg_sleep\s*\(`)},
	{"file_probe", regexp.MustCompile(`(?i)\bload_file\s*\(|\binto\s+outfile\b`)},
}

// Issue is a single detected injection-risk finding.
type Issue struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Classification is the verdict for one SQL text. It is a plain value:
// computed per call, never cached, never mutated after creation.
type Classification struct {
	// MatchedKeywords holds mutating keywords found as standalone words,
	// uppercased, deduplicated, sorted.
	MatchedKeywords []string
	// Issues holds at most one injection-risk finding (first category wins).
	Issues []Issue
}

// IsMutating reports whether any mutating keyword was found.
func (c Classification) IsMutating() bool {
	return len(c.MatchedKeywords) > 0
}

// Classify inspects sql and returns its classification. Pure function:
// identical input always yields an equal result and no global state is
// touched.
func Classify(sql string) Classification {
	return Classification{
		MatchedKeywords: detectMutatingKeywords(sql),
		Issues:          checkInjectionRisk(sql),
	}
}

// detectMutatingKeywords returns the mutating keywords present in sql as
// standalone words. Occurrences embedded in longer identifiers
// ("table_insert") do not match.
func detectMutatingKeywords(sql string) []string {
	matches := mutatingPattern.FindAllString(sql, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var keywords []string
	for _, m := range matches {
		upper := strings.ToUpper(m)
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		keywords = append(keywords, upper)
	}
	sort.Strings(keywords)
	return keywords
}

// checkInjectionRisk evaluates the ordered category list and stops at the
// first match.
func checkInjectionRisk(sql string) []Issue {
	for _, rule := range injectionRules {
		if rule.pattern.MatchString(sql) {
			return []Issue{{
				Kind:     rule.kind,
				Message:  fmt.Sprintf("Suspicious pattern in query: %s", sql),
				Severity: "high",
			}}
		}
	}
	return nil
}

// Gate applies the execution policy to a classification.
type Gate struct {
	// ReadOnly rejects any statement classified as mutating.
	ReadOnly bool
}

// Check returns nil if execution is allowed, or a human-readable rejection
// error. The read-only check and the injection check are independent:
// either can block regardless of the other's outcome.
func (g Gate) Check(c Classification) error {
	if g.ReadOnly && c.IsMutating() {
		return fmt.Errorf(
			"Error: this server only allows read-only queries (detected mutating keywords: %s). If you need write access, change the server configuration.",
			strings.Join(c.MatchedKeywords, ", "),
		)
	}
	if len(c.Issues) > 0 {
		issue := c.Issues[0]
		return fmt.Errorf(
			"Query parameter contains suspicious pattern with following issues: [%s] %s (severity: %s)",
			issue.Kind, issue.Message, issue.Severity,
		)
	}
	return nil
}
