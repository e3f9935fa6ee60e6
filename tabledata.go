package pgguard

import (
	"context"
	"fmt"
)

const (
	defaultSchema  = "public"
	defaultMaxRows = 100
)

// GetTableData returns up to MaxRows rows of a table as text. It is
// defined as ExecuteSQL over a statement built by tableDataQuery, so it
// goes through the same gateway classification as any other query.
func (p *PostgresGuard) GetTableData(ctx context.Context, input GetTableDataInput) string {
	schema := input.Schema
	if schema == "" {
		schema = defaultSchema
	}
	maxRows := input.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return p.ExecuteSQL(ctx, ExecuteSQLInput{Query: tableDataQuery(input.Table, schema, maxRows)})
}

// tableDataQuery interpolates the schema and table identifiers into the
// statement text UNESCAPED. This mirrors the external contract: the
// gateway's heuristics are the only defense at this boundary, and this
// helper is the single point for future hardening.
func tableDataQuery(table, schema string, maxRows int) string {
	return fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d", schema, table, maxRows)
}
