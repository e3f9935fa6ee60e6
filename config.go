package pgguard

import (
	"fmt"

	"github.com/pgguard/pgguard/internal/secrets"
)

// Config is the base configuration used by library mode via New().
// It is built once at startup and never mutated afterward; all components
// share it read-only.
type Config struct {
	Pool         Pool              `json:"pool"`
	ReadOnly     bool              `json:"read_only"`
	Debug        bool              `json:"debug"`
	Timezone     string            `json:"timezone"`
	ErrorPrompts []ErrorPromptRule `json:"error_prompts"`
	Redaction    []RedactionRule   `json:"redaction"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters. Credentials are
// never stored in the config file: the password comes from the
// environment, an interactive prompt, or the secret referenced by SecretID.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	SecretID string `json:"secret_id"`
}

// Resolve applies the secret referenced by SecretID, if any. The returned
// config has host, port, user, and dbname filled from the secret payload,
// and the secret's password is returned alongside. A missing required key
// inside the secret is a fatal configuration error, never defaulted.
// Called exactly once at startup.
func (c ConnectionConfig) Resolve(store secrets.Store) (ConnectionConfig, string, error) {
	if c.SecretID == "" {
		return c, "", nil
	}
	if store == nil {
		return ConnectionConfig{}, "", fmt.Errorf("connection.secret_id is set but no secret store is configured")
	}
	params, err := secrets.Resolve(store, c.SecretID)
	if err != nil {
		return ConnectionConfig{}, "", err
	}
	c.Host = params.Host
	c.Port = params.Port
	c.User = params.User
	c.DBName = params.DBName
	return c, params.Password, nil
}

// Pool holds connection pool settings.
type Pool struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// ErrorPromptRule maps a database error pattern to a guidance message
// appended to the error text returned to the agent.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// RedactionRule defines a regex-based redaction applied to result cells.
type RedactionRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
