package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	pgguard "github.com/pgguard/pgguard"
)

// starterConfig is the configuration written by `pgguard configure`: a safe
// read-only starting point with one guidance rule already wired.
func starterConfig() pgguard.ServerConfig {
	return pgguard.ServerConfig{
		Config: pgguard.Config{
			Pool:     pgguard.Pool{MaxConns: 10},
			ReadOnly: true,
			ErrorPrompts: []pgguard.ErrorPromptRule{
				{
					Pattern: `does not exist`,
					Message: "Call get_tables to see the available tables, then get_table_schemas for column details.",
				},
			},
		},
		Connection: pgguard.ConnectionConfig{
			Host:    "localhost",
			Port:    5432,
			DBName:  "postgres",
			SSLMode: "prefer",
		},
		Server: pgguard.ServerSettings{
			Port:               8976,
			HealthCheckEnabled: true,
			HealthCheckPath:    "/healthz",
		},
		Logging: pgguard.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", ".pgguard/config.json", "Path to configuration file")
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	fs.Parse(os.Args[2:])

	printBanner(os.Stderr, isTTY(os.Stderr.Fd()))
	return configure(*configPath, *force)
}

func configure(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
		}
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(starterConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal starter config: %w", err)
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Wrote starter configuration to %s\n", configPath)
	fmt.Fprintln(os.Stderr, "Edit the connection section, then run 'pgguard doctor' to validate.")
	return nil
}
