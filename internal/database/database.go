// Package database provides connection management for the source and
// destination databases (MySQL, PostgreSQL or SQLite).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
)

// Manager handles the source connection (read by extraction) and the
// optional destination connection (written by load and verify).
type Manager struct {
	Source      *sql.DB
	Destination *sql.DB
	config      *config.Config

	// retry tuning, overridden in tests
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:     cfg,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// ConnectSource establishes the source connection.
func (m *Manager) ConnectSource(ctx context.Context) error {
	db, err := m.connectWithRetry(ctx, &m.config.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	m.Source = db
	return nil
}

// ConnectDestination establishes the destination connection.
func (m *Manager) ConnectDestination(ctx context.Context) error {
	if !m.config.Destination.IsConfigured() {
		return fmt.Errorf("destination database is not configured")
	}
	db, err := m.connectWithRetry(ctx, &m.config.Destination)
	if err != nil {
		return fmt.Errorf("failed to connect to destination database: %w", err)
	}
	m.Destination = db
	return nil
}

// Connect establishes both connections.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.ConnectSource(ctx); err != nil {
		return err
	}
	if err := m.ConnectDestination(ctx); err != nil {
		_ = m.Source.Close()
		m.Source = nil
		return err
	}
	return nil
}

// SourceDialect returns the SQL dialect of the source database.
func (m *Manager) SourceDialect() sqlutil.Dialect {
	d, _ := sqlutil.ParseDialect(m.config.Source.Driver)
	return d
}

// DestinationDialect returns the SQL dialect of the destination database.
func (m *Manager) DestinationDialect() sqlutil.Dialect {
	d, _ := sqlutil.ParseDialect(m.config.Destination.Driver)
	return d
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	backoff := m.backoff
	for i := 0; i < m.maxRetries; i++ {
		db, err = Open(cfg)
		if err == nil {
			pingErr := db.PingContext(ctx)
			if pingErr == nil {
				return db, nil
			}
			_ = db.Close()
			err = pingErr
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// Open creates a connection pool for the configured driver without pinging.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "mysql", "":
		db, err = sql.Open("mysql", BuildDSN(cfg))
	case "postgres":
		var connCfg *pgx.ConnConfig
		connCfg, err = pgx.ParseConfig(BuildDSN(cfg))
		if err == nil {
			db = stdlib.OpenDB(*connCfg)
		}
	case "sqlite":
		db, err = sql.Open("sqlite3", BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// Single writer; a wider pool only yields SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxConnections > 0 {
			db.SetMaxOpenConns(cfg.MaxConnections)
		}
		if cfg.MaxIdleConnections > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConnections)
		}
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs the driver-specific DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	switch cfg.Driver {
	case "postgres":
		return buildPostgresDSN(cfg)
	case "sqlite":
		return buildSQLiteDSN(cfg)
	default:
		return buildMySQLDSN(cfg)
	}
}

// buildMySQLDSN formats user:password@tcp(host:port)/database?params.
func buildMySQLDSN(cfg *config.DatabaseConfig) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.EffectivePort(),
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	// parseTime so DATE/DATETIME scan into time.Time
	params := "?parseTime=true&loc=UTC"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// buildPostgresDSN formats a postgres:// URL understood by pgx.
func buildPostgresDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.EffectivePort()),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}

	q := url.Values{}
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// buildSQLiteDSN turns a file path into a go-sqlite3 URI with foreign keys on.
func buildSQLiteDSN(cfg *config.DatabaseConfig) string {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_foreign_keys=on"
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Destination != nil {
		if err := m.Destination.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destination close: %w", err))
		}
	}

	if m.Source != nil {
		if err := m.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies all open connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source != nil {
		if err := m.Source.PingContext(ctx); err != nil {
			return fmt.Errorf("source ping failed: %w", err)
		}
	}

	if m.Destination != nil {
		if err := m.Destination.PingContext(ctx); err != nil {
			return fmt.Errorf("destination ping failed: %w", err)
		}
	}

	return nil
}
