package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	pgguard "github.com/pgguard/pgguard"
	"github.com/pgguard/pgguard/internal/meta"
	"github.com/pgguard/pgguard/internal/secrets"
)

func runServe() error {
	ctx := context.Background()

	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	// 1. Load ServerConfig
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("pgguard: server.port must be > 0")
	}

	// 2. Resolve connection string. A full connection string from the
	// environment wins over everything; otherwise the connection config is
	// resolved against the secret store and completed from env or prompts.
	connString := os.Getenv("PGGUARD_PG_CONNSTRING")
	if connString == "" {
		conn, password, err := serverConfig.Connection.Resolve(secretStoreFromEnv())
		if err != nil {
			return fmt.Errorf("failed to resolve connection secret: %w", err)
		}
		username := conn.User
		if username == "" {
			username = promptInput("Username: ")
		}
		if password == "" {
			password = os.Getenv("PGGUARD_PG_PASSWORD")
		}
		if password == "" {
			password = promptPassword("Password: ")
		}
		connString = buildConnString(conn, username, password)
	}

	// 3. Setup logger
	logger := setupLogger(serverConfig.Logging, serverConfig.Debug)

	// 4. Create PostgresGuard instance
	guard, err := pgguard.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create PostgresGuard: %w", err)
	}
	defer guard.Close(ctx)

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := guard.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Bool("read_only", serverConfig.ReadOnly).Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgguard", meta.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithHooks(hooks),
	)

	pgguard.RegisterMCPTools(mcpServer, guard)
	pgguard.RegisterMCPResources(mcpServer, guard)

	// 7. Start HTTP server with optional health check
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("pgguard: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgguard server")
	return streamableServer.Start(addr)
}

func loadServerConfig() (*pgguard.ServerConfig, error) {
	configPath := os.Getenv("PGGUARD_CONFIG_PATH")
	if configPath == "" {
		configPath = ".pgguard/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config pgguard.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// secretStoreFromEnv returns a file-based secret store rooted at
// PGGUARD_SECRETS_DIR, or nil when the variable is unset.
func secretStoreFromEnv() secrets.Store {
	dir := os.Getenv("PGGUARD_SECRETS_DIR")
	if dir == "" {
		return nil
	}
	return secrets.FileStore{Dir: dir}
}

func buildConnString(conn pgguard.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", conn.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config pgguard.LoggingConfig, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	// Debug mode forces debug-level output regardless of logging.level.
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
