package pgguard

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgguard/pgguard/internal/gateway"
)

// ExecuteSQL runs the full execution pipeline and always returns a string:
// a tabular text result for read statements, a rows-affected summary for
// mutating statements, a rejection message when the gateway blocks the
// query, or a descriptive error message when the database fails. Callers
// never receive a Go error.
//
// Classification always happens before execution. Rejected queries never
// touch the connection pool.
func (p *PostgresGuard) ExecuteSQL(ctx context.Context, input ExecuteSQLInput) string {
	startTime := time.Now()
	sql := input.Query

	// 1. Classify and apply the policy gate before anything else.
	classification := gateway.Classify(sql)
	if err := p.gate.Check(classification); err != nil {
		p.logger.Info().
			Str("sql", truncateForLog(sql, 200)).
			Strs("matched_keywords", classification.MatchedKeywords).
			Msg("query rejected by gateway")
		return err.Error()
	}

	if p.config.Debug {
		// Normalized form strips literal values, so debug logs never
		// carry row data.
		if normalized, err := pg_query.Normalize(sql); err == nil {
			p.logger.Debug().Str("sql_normalized", normalized).Msg("executing query")
		}
	}

	// 2. Acquire a slot and a connection. One connection, one
	// transaction per call, released on every exit path.
	release, err := p.acquireSlot(ctx, "ExecuteSQL")
	if err != nil {
		return p.handleQueryError(sql, err)
	}
	defer release()

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return p.handleQueryError(sql, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return p.handleQueryError(sql, err)
	}
	defer tx.Rollback(ctx)

	// 3. Execute. Statements starting with SELECT or WITH are read
	// statements; everything else is treated as mutating and committed.
	if isReadStatement(sql) {
		rows, err := tx.Query(ctx, sql)
		if err != nil {
			return p.handleQueryError(sql, err)
		}
		columns, cells, err := collectRows(rows)
		if err != nil {
			return p.handleQueryError(sql, err)
		}
		tx.Rollback(ctx)

		cells = p.redactor.Rows(cells)

		p.logger.Info().
			Str("sql", truncateForLog(sql, 200)).
			Dur("duration", time.Since(startTime)).
			Int("row_count", len(cells)).
			Msg("query executed")

		return renderResult(columns, cells)
	}

	tag, err := tx.Exec(ctx, sql)
	if err != nil {
		return p.handleQueryError(sql, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return p.handleQueryError(sql, err)
	}

	p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int64("rows_affected", tag.RowsAffected()).
		Msg("query executed")

	return fmt.Sprintf("Query executed successfully. Rows affected: %d", tag.RowsAffected())
}

// isReadStatement reports whether the trimmed statement begins with SELECT
// or WITH (case-insensitive). Mirrors the execution contract: read
// statements are fetched and rendered, everything else is committed.
func isReadStatement(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// collectRows drains rows into column names (positional cursor order) and
// stringified cell values.
func collectRows(rows pgx.Rows) ([]string, [][]string, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	var cells [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = stringifyCell(v)
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, cells, nil
}

// stringifyCell converts a driver value to its text form. NULL renders as
// an empty string.
func stringifyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		// bytea — base64, consistent with how binary data is usually
		// shipped to agents.
		return base64.StdEncoding.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderResult renders a read result as text: first line is comma-joined
// column names, each following line is comma-joined cell values. Embedded
// delimiters are NOT escaped; that is the caller's responsibility.
func renderResult(columns []string, cells [][]string) string {
	lines := make([]string, 0, len(cells)+1)
	lines = append(lines, strings.Join(columns, ","))
	for _, row := range cells {
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}

// handleQueryError converts a database-layer failure into a descriptive
// result string. Matching error-prompt guidance is appended so the agent
// can adapt.
func (p *PostgresGuard) handleQueryError(sql string, err error) string {
	errMsg := err.Error()
	guidance, patterns := p.errPrompts.Evaluate(errMsg)

	logEvent := p.logger.Error().Err(err).Str("sql", truncateForLog(sql, 200))
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	result := fmt.Sprintf("Error executing query: %s", errMsg)
	if guidance != "" {
		result += "\n\n" + guidance
	}
	return result
}

// truncateForLog truncates a string for log output to avoid oversized log
// entries, keeping the cut on a rune boundary.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
