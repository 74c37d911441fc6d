package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Config describes how to reach the database.
type Config struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Manager owns the connection pool. Domain operations run on Sessions
// obtained from NewSession.
type Manager struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the time source used for created/updated/completed
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for schema and session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}

	d, err := newDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.URL
	if d.driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d.driver == DriverSQLite {
		if err := checkForeignKeys(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	m := &Manager{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// InitSchema creates every table and index that does not exist yet.
func (m *Manager) InitSchema(ctx context.Context) error {
	schemaSQL, err := schemaFS.ReadFile("schema/" + m.dialect.driver + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	for _, stmt := range strings.Split(string(schemaSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	m.logger.Info("database schema ready", "driver", m.dialect.driver)
	return nil
}

func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// NewSession opens a unit of work. The caller must Close it.
func (m *Manager) NewSession() *Session {
	return &Session{m: m}
}

// timestamp returns the current time at the precision every supported
// backend stores.
func (m *Manager) timestamp() time.Time {
	return storedTime(m.now())
}

// storedTime normalizes t to UTC at microsecond precision. SQLite keeps the
// zone name as text and cannot read back every abbreviation.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
