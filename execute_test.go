package pgguard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgguard/pgguard/internal/errprompt"
	"github.com/pgguard/pgguard/internal/gateway"
	"github.com/pgguard/pgguard/internal/redact"
)

// newOfflineGuard builds a PostgresGuard with no connection pool. Any code
// path that touches the database panics on the nil pool, which is exactly
// what rejection-path tests rely on: a rejected query must never reach the
// database.
func newOfflineGuard(t *testing.T, config Config) *PostgresGuard {
	t.Helper()
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		t.Fatalf("failed to build errprompt matcher: %v", err)
	}
	redactor, err := redact.NewRedactor(mapRedactionRules(config.Redaction))
	if err != nil {
		t.Fatalf("failed to build redactor: %v", err)
	}
	return &PostgresGuard{
		config:     config,
		semaphore:  make(chan struct{}, 1),
		gate:       gateway.Gate{ReadOnly: config.ReadOnly},
		errPrompts: matcher,
		redactor:   redactor,
		logger:     zerolog.Nop(),
	}
}

func TestExecuteSQL_ReadOnlyRejection_NeverReachesDatabase(t *testing.T) {
	t.Parallel()
	guard := newOfflineGuard(t, Config{ReadOnly: true})

	result := guard.ExecuteSQL(context.Background(), ExecuteSQLInput{Query: "DELETE FROM logs"})
	if !strings.Contains(result, "read-only") {
		t.Fatalf("expected read-only rejection, got %q", result)
	}
	if !strings.Contains(result, "DELETE") {
		t.Fatalf("expected detected keyword in rejection, got %q", result)
	}
}

func TestExecuteSQL_SuspiciousPatternRejection_NeverReachesDatabase(t *testing.T) {
	t.Parallel()
	// Read-only off: the injection check blocks independently.
	guard := newOfflineGuard(t, Config{ReadOnly: false})

	result := guard.ExecuteSQL(context.Background(), ExecuteSQLInput{Query: "SELECT * FROM t WHERE 1=1 OR 1=1"})
	if !strings.Contains(result, "suspicious pattern") {
		t.Fatalf("expected suspicious-pattern rejection, got %q", result)
	}
}

func TestExecuteSQL_MutatingKeywordInComment_StillRejected(t *testing.T) {
	t.Parallel()
	// Documented limitation: no comment stripping.
	guard := newOfflineGuard(t, Config{ReadOnly: true})

	result := guard.ExecuteSQL(context.Background(), ExecuteSQLInput{Query: "SELECT 1 -- INSERT INTO t"})
	if !strings.Contains(result, "read-only") {
		t.Fatalf("expected rejection for keyword inside comment, got %q", result)
	}
}

func TestHandleQueryError_AppendsGuidance(t *testing.T) {
	t.Parallel()
	guard := newOfflineGuard(t, Config{
		ErrorPrompts: []ErrorPromptRule{
			{Pattern: `does not exist`, Message: "Call get_tables to see the available tables."},
		},
	})

	result := guard.handleQueryError("SELECT 1", errForTest(`relation "userz" does not exist`))
	if !strings.HasPrefix(result, "Error executing query: ") {
		t.Fatalf("expected error prefix, got %q", result)
	}
	if !strings.Contains(result, "Call get_tables") {
		t.Fatalf("expected guidance appended, got %q", result)
	}
}

func TestHandleQueryError_NoGuidance(t *testing.T) {
	t.Parallel()
	guard := newOfflineGuard(t, Config{})

	result := guard.handleQueryError("SELECT 1", errForTest("connection refused"))
	if result != "Error executing query: connection refused" {
		t.Fatalf("unexpected result: %q", result)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

func errForTest(msg string) error { return testError(msg) }

func TestIsReadStatement(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT * FROM users", true},
		{"select 1", true},
		{"  \n\tSELECT 1", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"with x as (select 1) select * from x", true},
		{"DELETE FROM logs", false},
		{"INSERT INTO t VALUES (1)", false},
		{"EXPLAIN SELECT 1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isReadStatement(tt.sql); got != tt.want {
			t.Errorf("isReadStatement(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestRenderResult(t *testing.T) {
	t.Parallel()
	got := renderResult([]string{"id", "name"}, [][]string{{"5", "Ann"}})
	if got != "id,name\n5,Ann" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderResult_MultipleRows(t *testing.T) {
	t.Parallel()
	got := renderResult([]string{"id", "name"}, [][]string{{"1", "Ann"}, {"2", "Bob"}})
	if got != "id,name\n1,Ann\n2,Bob" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderResult_NoRows(t *testing.T) {
	t.Parallel()
	got := renderResult([]string{"id", "name"}, nil)
	if got != "id,name" {
		t.Fatalf("expected header-only result, got %q", got)
	}
}

func TestRenderResult_NoDelimiterEscaping(t *testing.T) {
	t.Parallel()
	// Embedded commas are not escaped. Documented caller responsibility.
	got := renderResult([]string{"name"}, [][]string{{"Doe, Jane"}})
	if got != "name\nDoe, Jane" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestStringifyCell(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "Ann", "Ann"},
		{"int64", int64(5), "5"},
		{"int32", int32(-7), "-7"},
		{"float64", 2.5, "2.5"},
		{"bool", true, "true"},
		{"time", ts, "2026-08-25T10:30:00Z"},
		{"bytea", []byte{0x01, 0x02}, "AQI="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stringifyCell(tt.in); got != tt.want {
				t.Errorf("stringifyCell(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := truncateForLog("short", 200); got != "short" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	long := strings.Repeat("a", 300)
	got := truncateForLog(long, 200)
	if len(got) != 200+len("...[truncated]") {
		t.Fatalf("unexpected truncated length %d", len(got))
	}
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}

func TestTruncateForLog_RuneBoundary(t *testing.T) {
	t.Parallel()
	// Multibyte runes must not be cut in half.
	s := strings.Repeat("é", 100) // 200 bytes
	got := truncateForLog(s, 101)
	trimmed := strings.TrimSuffix(got, "...[truncated]")
	if !strings.HasSuffix(trimmed, "é") {
		t.Fatalf("expected cut on rune boundary, got %q", trimmed)
	}
}
