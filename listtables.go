package pgguard

import (
	"context"
	"fmt"
	"time"
)

// Documented tables and views from information_schema, plus documented
// materialized views from pg_class (they never appear in
// information_schema.tables). Objects without a catalog description are
// deliberately excluded: the listing is a curated surface, undocumented
// objects stay invisible to the agent.
const listTablesSQL = `
SELECT
    t.table_name,
    t.table_type,
    obj_description(pgc.oid) AS table_description
FROM information_schema.tables t
LEFT JOIN pg_catalog.pg_class pgc ON pgc.relname = t.table_name
LEFT JOIN pg_catalog.pg_namespace pgn ON pgn.oid = pgc.relnamespace
    AND pgn.nspname = t.table_schema
WHERE t.table_schema = $1
    AND t.table_type IN ('BASE TABLE', 'VIEW')
    AND obj_description(pgc.oid) IS NOT NULL

UNION ALL

SELECT
    pgc.relname AS table_name,
    'MATERIALIZED VIEW' AS table_type,
    obj_description(pgc.oid) AS table_description
FROM pg_catalog.pg_class pgc
JOIN pg_catalog.pg_namespace pgn ON pgn.oid = pgc.relnamespace
WHERE pgn.nspname = $1
    AND pgc.relkind = 'm'
    AND obj_description(pgc.oid) IS NOT NULL

ORDER BY table_name;
`

// GetTables lists the documented tables, views, and materialized views of
// a schema, sorted by name. On catalog failure it logs the error and
// returns an empty list: introspection soft-fails, the agent cannot
// distinguish "empty" from "failed".
func (p *PostgresGuard) GetTables(ctx context.Context, input GetTablesInput) []TableDescriptor {
	schema := input.Schema
	if schema == "" {
		schema = "public"
	}

	tables, err := p.listTables(ctx, schema)
	if err != nil {
		p.logger.Error().Err(err).Str("schema", schema).Msg("GetTables failed")
		return []TableDescriptor{}
	}
	return tables
}

// listTables is the fallible half of GetTables; GetTables is the single
// visible adapter that collapses its error to an empty list.
func (p *PostgresGuard) listTables(ctx context.Context, schema string) ([]TableDescriptor, error) {
	startTime := time.Now()

	release, err := p.acquireSlot(ctx, "GetTables")
	if err != nil {
		return nil, err
	}
	defer release()

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, listTablesSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("GetTables query failed: %w", err)
	}
	defer rows.Close()

	tables := []TableDescriptor{}
	for rows.Next() {
		var name, catalogType, description string
		if err := rows.Scan(&name, &catalogType, &description); err != nil {
			return nil, fmt.Errorf("GetTables scan failed: %w", err)
		}
		tables = append(tables, TableDescriptor{
			Name:        name,
			Kind:        tableKindFromCatalog(catalogType),
			Description: description,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetTables rows error: %w", err)
	}

	p.logger.Info().
		Str("schema", schema).
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("GetTables executed")

	return tables, nil
}

// tableKindFromCatalog maps information_schema table_type spellings to
// TableKind values.
func tableKindFromCatalog(catalogType string) TableKind {
	switch catalogType {
	case "BASE TABLE":
		return KindTable
	case "VIEW":
		return KindView
	case "MATERIALIZED VIEW":
		return KindMaterializedView
	default:
		return TableKind(catalogType)
	}
}
