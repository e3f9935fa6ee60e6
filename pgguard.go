package pgguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgguard/pgguard/internal/errprompt"
	"github.com/pgguard/pgguard/internal/gateway"
	"github.com/pgguard/pgguard/internal/redact"
)

// PostgresGuard is the core engine behind the ExecuteSQL, GetTables,
// GetTableSchemas, and GetTableData tools. All exported methods are safe
// for concurrent use from multiple goroutines; the only shared state is
// the immutable config and the connection pool.
type PostgresGuard struct {
	config     Config
	pool       *pgxpool.Pool
	semaphore  chan struct{}
	gate       gateway.Gate
	errPrompts *errprompt.Matcher
	redactor   *redact.Redactor
	logger     zerolog.Logger
}

// New creates a new PostgresGuard instance.
// connString is the PostgreSQL connection string (must include credentials).
// Panics on invalid config. Returns error only for runtime failures
// (pool creation, invalid rule regexes).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*PostgresGuard, error) {
	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("pgguard: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("pgguard: pool.max_conns must be > 0")
	}
	if config.Pool.MinConns < 0 {
		panic("pgguard: pool.min_conns must be >= 0")
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgguard: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgguard: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgguard: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	// Session-level settings. The read-only transaction setting is a
	// second line of defense behind the gateway's keyword check.
	if config.ReadOnly || config.Timezone != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if config.ReadOnly {
				if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
					return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
				}
			}
			if config.Timezone != "" {
				escaped := strings.ReplaceAll(config.Timezone, "'", "''")
				if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
					return fmt.Errorf("failed to SET timezone: %w", err)
				}
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// --- Initialize internal components ---

	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		pool.Close()
		return nil, err
	}
	redactor, err := redact.NewRedactor(mapRedactionRules(config.Redaction))
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresGuard{
		config:     config,
		pool:       pool,
		semaphore:  make(chan struct{}, config.Pool.MaxConns),
		gate:       gateway.Gate{ReadOnly: config.ReadOnly},
		errPrompts: matcher,
		redactor:   redactor,
		logger:     logger,
	}, nil
}

// Ping verifies database connectivity.
func (p *PostgresGuard) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool. Accepts context for API
// forward-compatibility; pgxpool.Pool.Close() does not support
// context-based shutdown.
func (p *PostgresGuard) Close(ctx context.Context) {
	p.pool.Close()
}

// acquireSlot takes a semaphore slot, respecting context cancellation.
// The returned release function must be called on every exit path.
func (p *PostgresGuard) acquireSlot(ctx context.Context, operation string) (release func(), err error) {
	select {
	case p.semaphore <- struct{}{}:
		return func() { <-p.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", operation, cap(p.semaphore), ctx.Err())
	}
}

// mapErrorPromptRules converts pgguard ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}

// mapRedactionRules converts pgguard RedactionRules to internal redact.Rules.
func mapRedactionRules(rules []RedactionRule) []redact.Rule {
	result := make([]redact.Rule, len(rules))
	for i, r := range rules {
		result[i] = redact.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}
