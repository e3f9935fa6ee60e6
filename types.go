package pgguard

// TableKind identifies the kind of relation a TableDescriptor refers to.
type TableKind string

const (
	KindTable            TableKind = "table"
	KindView             TableKind = "view"
	KindMaterializedView TableKind = "materialized_view"
)

// ExecuteSQLInput is the input for the ExecuteSQL tool.
type ExecuteSQLInput struct {
	Query string `json:"query"`
}

// GetTablesInput is the input for the GetTables tool.
type GetTablesInput struct {
	Schema string `json:"schema_name"`
}

// TableDescriptor is one documented table, view, or materialized view.
// Only objects carrying a catalog description are listed, so Description
// is always populated.
type TableDescriptor struct {
	Name        string    `json:"name"`
	Kind        TableKind `json:"type"`
	Description string    `json:"description"`
}

// GetTableSchemasInput is the input for the GetTableSchemas tool.
type GetTableSchemasInput struct {
	Tables []string `json:"tables"`
	Schema string   `json:"schema_name"`
}

// ForeignKeyRef is the single {schema, table, column} target a column's
// foreign key resolves to.
type ForeignKeyRef struct {
	Schema string `json:"referenced_schema"`
	Table  string `json:"referenced_table"`
	Column string `json:"referenced_column"`
}

// ColumnDescriptor describes one column of a table.
type ColumnDescriptor struct {
	Name        string         `json:"name"`
	DataType    string         `json:"type"`
	MaxLength   *int           `json:"max_length,omitempty"`
	Nullable    bool           `json:"nullable"`
	Default     *string        `json:"default,omitempty"`
	Description *string        `json:"description,omitempty"`
	ForeignKey  *ForeignKeyRef `json:"foreign_key,omitempty"`
}

// TableSchema is the full column layout of one table. Columns are ordered
// by ordinal position.
type TableSchema struct {
	Name        string             `json:"name"`
	Schema      string             `json:"schema"`
	Description *string            `json:"description,omitempty"`
	Columns     []ColumnDescriptor `json:"columns"`
}

// GetTableDataInput is the input for the GetTableData tool.
type GetTableDataInput struct {
	Table   string `json:"table_name"`
	Schema  string `json:"schema_name"`
	MaxRows int    `json:"max_rows"`
}
