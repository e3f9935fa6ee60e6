package pgguard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers execute_sql, get_tables, get_table_schemas,
// and get_table_data as MCP tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, guard *PostgresGuard) {
	// execute_sql tool
	executeSQLTool := mcp.NewTool("execute_sql",
		mcp.WithDescription("Execute a SQL query and return the result as text. Mutating statements are rejected when the server runs in read-only mode."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SQL query to execute"),
		),
	)

	mcpServer.AddTool(executeSQLTool, guard.loggedToolHandler("execute_sql", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		// Rejections and database errors are normal text results: the
		// agent is expected to read them and adapt.
		return mcp.NewToolResultText(guard.ExecuteSQL(ctx, ExecuteSQLInput{Query: query})), nil
	}))

	// get_tables tool
	getTablesTool := mcp.NewTool("get_tables",
		mcp.WithDescription("List documented tables, views, and materialized views in a schema with their descriptions."),
		mcp.WithString("schema_name",
			mcp.Description("Schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(getTablesTool, guard.loggedToolHandler("get_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema := req.GetString("schema_name", "public")
		tables := guard.GetTables(ctx, GetTablesInput{Schema: schema})
		jsonBytes, err := json.Marshal(tables)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal get_tables result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// get_table_schemas tool
	getTableSchemasTool := mcp.NewTool("get_table_schemas",
		mcp.WithDescription("Get schema information for tables including column details and foreign key relationships."),
		mcp.WithArray("tables",
			mcp.Required(),
			mcp.Description("Names of the tables"),
			mcp.WithStringItems(),
		),
		mcp.WithString("schema_name",
			mcp.Description("Schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(getTableSchemasTool, guard.loggedToolHandler("get_table_schemas", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables := stringSliceArgument(req, "tables")
		if len(tables) == 0 {
			return mcp.NewToolResultError("tables parameter is required"), nil
		}
		schema := req.GetString("schema_name", "public")
		schemas := guard.GetTableSchemas(ctx, GetTableSchemasInput{Tables: tables, Schema: schema})
		jsonBytes, err := json.Marshal(schemas)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal get_table_schemas result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// get_table_data tool
	getTableDataTool := mcp.NewTool("get_table_data",
		mcp.WithDescription("Get up to max_rows rows of a table as text."),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("Name of the table"),
		),
		mcp.WithString("schema_name",
			mcp.Description("Schema name (defaults to 'public')"),
		),
		mcp.WithNumber("max_rows",
			mcp.Description("Maximum number of rows to return (defaults to 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(getTableDataTool, guard.loggedToolHandler("get_table_data", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil {
			return mcp.NewToolResultError("table_name parameter is required"), nil
		}
		schema := req.GetString("schema_name", "public")
		maxRows := intArgument(req, "max_rows", defaultMaxRows)
		result := guard.GetTableData(ctx, GetTableDataInput{Table: table, Schema: schema, MaxRows: maxRows})
		return mcp.NewToolResultText(result), nil
	}))
}

// RegisterMCPResources registers the postgresql://{table_name}/data
// resource template, mirroring get_table_data with default schema and row
// limit.
func RegisterMCPResources(mcpServer *server.MCPServer, guard *PostgresGuard) {
	template := mcp.NewResourceTemplate(
		"postgresql://{table_name}/data",
		"Table data",
		mcp.WithTemplateDescription("Data for a table in the public schema"),
		mcp.WithTemplateMIMEType("text/plain"),
	)

	mcpServer.AddResourceTemplate(template, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		table, ok := tableFromDataURI(req.Params.URI)
		if !ok {
			return nil, fmt.Errorf("unsupported resource URI: %s", req.Params.URI)
		}
		result := guard.GetTableData(ctx, GetTableDataInput{Table: table})
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     result,
			},
		}, nil
	})
}

// tableFromDataURI extracts the table name from a
// postgresql://{table_name}/data URI.
func tableFromDataURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "postgresql://")
	if !ok {
		return "", false
	}
	table, ok := strings.CutSuffix(rest, "/data")
	if !ok || table == "" || strings.Contains(table, "/") {
		return "", false
	}
	return table, true
}

// stringSliceArgument extracts a []string tool argument. JSON arrays
// arrive as []any; non-string elements are skipped.
func stringSliceArgument(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	var result []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// intArgument extracts a numeric tool argument. JSON numbers arrive as
// float64.
func intArgument(req mcp.CallToolRequest, key string, defaultValue int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *PostgresGuard) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
