// Package pgguard provides safe, controlled PostgreSQL access for AI
// agents through the Model Context Protocol (MCP).
//
// It exposes four tools — ExecuteSQL, GetTables, GetTableSchemas, and
// GetTableData — behind a SQL safety gateway: every statement is
// classified for mutating keywords and injection-risk patterns before it
// reaches the database, and a read-only policy gate can reject mutating
// statements outright.
//
// The gateway is a fast heuristic pre-filter, not a provable security
// boundary: it matches keywords on word boundaries over the raw statement
// text without parsing SQL or stripping comments. Deployments that need
// hard guarantees should combine read-only mode with database-level
// privileges.
//
// Introspection is a curated surface: GetTables only lists objects that
// carry a catalog description, and both introspection tools collapse
// catalog failures into empty results. ExecuteSQL instead reports
// database failures as descriptive text results, so the calling agent can
// observe the error and adapt its next query.
//
// # Library Usage
//
//	p, err := pgguard.New(ctx, connString, pgguard.Config{
//		Pool:     pgguard.Pool{MaxConns: 10},
//		ReadOnly: true,
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	result := p.ExecuteSQL(ctx, pgguard.ExecuteSQLInput{Query: "SELECT * FROM users LIMIT 10"})
//
//	// Or register as MCP tools
//	pgguard.RegisterMCPTools(mcpServer, p)
//	pgguard.RegisterMCPResources(mcpServer, p)
package pgguard
