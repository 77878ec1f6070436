// Package appdb writes configuration settings into the application database
// of a provisioned instance.
package appdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
)

// =============================================================================
// Dialects
// =============================================================================

// Dialect selects the upsert syntax of the target database.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// DefaultScope is the scope of instance-wide settings.
const DefaultScope = "default"

func (d Dialect) upsertQuery() string {
	if d == DialectSQLite {
		return `INSERT INTO core_config_data (scope, scope_id, path, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(scope, scope_id, path) DO UPDATE SET value = excluded.value`
	}
	return `INSERT INTO core_config_data (scope, scope_id, path, value)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`
}

func (d Dialect) tableExistsQuery() string {
	if d == DialectSQLite {
		return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
}

// =============================================================================
// Connection
// =============================================================================

// ConnectionConfig locates the application database.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Timeout  time.Duration
}

// ConnectionFor returns the connection to the database container of a
// started instance, reached through its published host port.
func ConnectionFor(cfg domain.EffectiveConfiguration, ports domain.Ports) ConnectionConfig {
	return ConnectionConfig{
		Host:     "127.0.0.1",
		Port:     ports.MariaDB,
		User:     cfg.App.DBUser,
		Password: cfg.App.DBPassword,
		Name:     cfg.App.DBName,
		Timeout:  5 * time.Second,
	}
}

// DSN renders the MySQL driver connection string.
func (c ConnectionConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Name
	mc.Timeout = c.Timeout
	mc.ParseTime = true
	return mc.FormatDSN()
}

// =============================================================================
// Writer
// =============================================================================

// Writer upserts rows of core_config_data keyed by (scope, scope_id, path).
type Writer struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to a MySQL/MariaDB application database. The connection is
// lazy; call WaitReady before the first write.
func Open(conn ConnectionConfig, logger *slog.Logger) (*Writer, error) {
	db, err := sqlx.Open(string(DialectMySQL), conn.DSN())
	if err != nil {
		return nil, domain.NewStackError("Open", "database", conn.Name, err.Error(), domain.ErrDatabaseWrite)
	}
	db.SetMaxOpenConns(2)
	return NewWriter(db, DialectMySQL, logger), nil
}

// NewWriter wraps an open database.
func NewWriter(db *sqlx.DB, dialect Dialect, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "appdb"),
	}
}

// Close closes the connection.
func (w *Writer) Close() error {
	return w.db.Close()
}

// WaitReady pings the database at a fixed interval until it answers. The
// database container may accept TCP before the server is ready for queries.
func (w *Writer) WaitReady(ctx context.Context, interval time.Duration, attempts uint64) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts),
		ctx,
	)
	err := backoff.Retry(func() error {
		return w.db.PingContext(ctx)
	}, policy)
	if err != nil {
		return domain.NewStackError("WaitReady", "database", "", fmt.Sprintf("database not reachable: %v", err), domain.ErrDatabaseWrite)
	}
	return nil
}

// Installed reports whether the application schema exists. A fresh database
// has no settings table until the application installs itself.
func (w *Writer) Installed(ctx context.Context) (bool, error) {
	var n int
	if err := w.db.GetContext(ctx, &n, w.dialect.tableExistsQuery(), "core_config_data"); err != nil {
		return false, domain.NewStackError("Installed", "database", "", err.Error(), domain.ErrDatabaseWrite)
	}
	return n > 0, nil
}

// Apply upserts every setting in the default scope inside one transaction.
// A nil value stores NULL.
func (w *Writer) Apply(ctx context.Context, settings []instance.Setting) error {
	if len(settings) == 0 {
		return nil
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStackError("Apply", "setting", "", err.Error(), domain.ErrDatabaseWrite)
	}

	query := w.dialect.upsertQuery()
	for _, s := range settings {
		if _, err := tx.ExecContext(ctx, query, DefaultScope, 0, s.Path, s.Value); err != nil {
			tx.Rollback()
			return domain.NewStackError("Apply", "setting", s.Path, err.Error(), domain.ErrDatabaseWrite)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStackError("Apply", "setting", "", err.Error(), domain.ErrDatabaseWrite)
	}

	w.logger.Debug("settings written", "count", len(settings))
	return nil
}

// Get returns the stored value of a default-scope setting. The second result
// is false when no row exists; a row holding NULL returns (nil, true).
func (w *Writer) Get(ctx context.Context, path string) (*string, bool, error) {
	var values []sql.NullString
	err := w.db.SelectContext(ctx, &values,
		w.db.Rebind(`SELECT value FROM core_config_data WHERE scope = ? AND scope_id = ? AND path = ?`),
		DefaultScope, 0, path)
	if err != nil {
		return nil, false, domain.NewStackError("Get", "setting", path, err.Error(), domain.ErrDatabaseWrite)
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	if !values[0].Valid {
		return nil, true, nil
	}
	return &values[0].String, true, nil
}
