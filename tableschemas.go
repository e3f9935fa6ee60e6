package pgguard

import (
	"context"
	"fmt"
	"time"
)

// One joined catalog query: columns from pg_attribute (ordinal order),
// object and column descriptions from pg_description, and foreign-key
// targets from the information_schema constraint catalogs.
const tableSchemasSQL = `
WITH all_columns AS (
    SELECT
        a.attname AS column_name,
        pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
        CASE
            WHEN a.atttypmod > 0 AND t.typname IN ('varchar', 'char', 'bpchar')
            THEN a.atttypmod - 4
            ELSE NULL
        END AS max_length,
        NOT a.attnotnull AS nullable,
        pg_catalog.pg_get_expr(ad.adbin, ad.adrelid) AS column_default,
        c.relname AS table_name,
        n.nspname AS table_schema,
        a.attnum AS ordinal_position,
        c.oid AS table_oid
    FROM pg_catalog.pg_class c
    JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
    JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
    JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
    LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = c.oid AND ad.adnum = a.attnum
    WHERE c.relkind IN ('r', 'v', 'm')
    AND n.nspname = $1
    AND c.relname = ANY($2)
    AND a.attnum > 0
    AND NOT a.attisdropped
)
SELECT
    ac.table_name,
    tbl_desc.description AS table_description,
    ac.column_name,
    ac.data_type,
    ac.max_length,
    ac.nullable,
    ac.column_default,
    col_desc.description AS column_description,
    ccu.table_schema AS fk_referenced_schema,
    ccu.table_name AS fk_referenced_table,
    ccu.column_name AS fk_referenced_column
FROM all_columns ac
LEFT JOIN pg_catalog.pg_description col_desc ON col_desc.objoid = ac.table_oid
    AND col_desc.objsubid = ac.ordinal_position
LEFT JOIN pg_catalog.pg_description tbl_desc ON tbl_desc.objoid = ac.table_oid
    AND tbl_desc.objsubid = 0
LEFT JOIN information_schema.key_column_usage kcu ON kcu.table_schema = ac.table_schema
    AND kcu.table_name = ac.table_name
    AND kcu.column_name = ac.column_name
LEFT JOIN information_schema.table_constraints tc ON tc.constraint_name = kcu.constraint_name
    AND tc.constraint_type = 'FOREIGN KEY'
LEFT JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name
ORDER BY ac.table_name, ac.ordinal_position;
`

// columnCatalogRow is one joined catalog row, converted to a typed record
// immediately after scanning. Raw positional tuples never cross a
// component boundary.
type columnCatalogRow struct {
	TableName         string
	TableDescription  *string
	ColumnName        string
	DataType          string
	MaxLength         *int
	Nullable          bool
	Default           *string
	ColumnDescription *string
	FKSchema          *string
	FKTable           *string
	FKColumn          *string
}

// GetTableSchemas returns one TableSchema per requested table for which at
// least one column row was found. Requested tables absent from the catalog
// join are silently omitted, not individually errored. On catalog failure
// it logs the error and returns an empty list.
func (p *PostgresGuard) GetTableSchemas(ctx context.Context, input GetTableSchemasInput) []TableSchema {
	schema := input.Schema
	if schema == "" {
		schema = "public"
	}

	schemas, err := p.fetchTableSchemas(ctx, input.Tables, schema)
	if err != nil {
		p.logger.Error().Err(err).Str("schema", schema).Strs("tables", input.Tables).Msg("GetTableSchemas failed")
		return []TableSchema{}
	}
	return schemas
}

// fetchTableSchemas is the fallible half of GetTableSchemas; GetTableSchemas
// is the single visible adapter that collapses its error to an empty list.
func (p *PostgresGuard) fetchTableSchemas(ctx context.Context, tables []string, schema string) ([]TableSchema, error) {
	startTime := time.Now()

	release, err := p.acquireSlot(ctx, "GetTableSchemas")
	if err != nil {
		return nil, err
	}
	defer release()

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, tableSchemasSQL, schema, tables)
	if err != nil {
		return nil, fmt.Errorf("GetTableSchemas query failed: %w", err)
	}
	defer rows.Close()

	var catalogRows []columnCatalogRow
	for rows.Next() {
		var row columnCatalogRow
		if err := rows.Scan(
			&row.TableName,
			&row.TableDescription,
			&row.ColumnName,
			&row.DataType,
			&row.MaxLength,
			&row.Nullable,
			&row.Default,
			&row.ColumnDescription,
			&row.FKSchema,
			&row.FKTable,
			&row.FKColumn,
		); err != nil {
			return nil, fmt.Errorf("GetTableSchemas scan failed: %w", err)
		}
		catalogRows = append(catalogRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetTableSchemas rows error: %w", err)
	}

	schemas := groupTableSchemas(catalogRows, schema)

	p.logger.Info().
		Str("schema", schema).
		Dur("duration", time.Since(startTime)).
		Int("requested", len(tables)).
		Int("found", len(schemas)).
		Msg("GetTableSchemas executed")

	return schemas, nil
}

// groupTableSchemas folds flat joined rows into per-table schemas. Tables
// appear in first-seen row order; columns preserve their (already sorted)
// ordinal order. A column that appears in several rows, which happens when
// it participates in more than one constraint, keeps only its first row,
// so a foreign key resolves to at most one target.
func groupTableSchemas(rows []columnCatalogRow, schema string) []TableSchema {
	index := make(map[string]int)
	seenColumns := make(map[string]map[string]struct{})
	schemas := []TableSchema{}

	for _, row := range rows {
		i, ok := index[row.TableName]
		if !ok {
			i = len(schemas)
			index[row.TableName] = i
			seenColumns[row.TableName] = make(map[string]struct{})
			schemas = append(schemas, TableSchema{
				Name:        row.TableName,
				Schema:      schema,
				Description: row.TableDescription,
				Columns:     []ColumnDescriptor{},
			})
		}

		if _, dup := seenColumns[row.TableName][row.ColumnName]; dup {
			continue
		}
		seenColumns[row.TableName][row.ColumnName] = struct{}{}

		column := ColumnDescriptor{
			Name:        row.ColumnName,
			DataType:    row.DataType,
			MaxLength:   row.MaxLength,
			Nullable:    row.Nullable,
			Default:     row.Default,
			Description: row.ColumnDescription,
		}
		if row.FKTable != nil && row.FKColumn != nil {
			fkSchema := schema
			if row.FKSchema != nil {
				fkSchema = *row.FKSchema
			}
			column.ForeignKey = &ForeignKeyRef{
				Schema: fkSchema,
				Table:  *row.FKTable,
				Column: *row.FKColumn,
			}
		}
		schemas[i].Columns = append(schemas[i].Columns, column)
	}

	return schemas
}
