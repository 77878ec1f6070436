package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/devstack/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the registry at dsn (a file path or ":memory:") and
// runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection keeps ":memory:" databases intact and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProject(ctx context.Context, project *domain.Project) error {
	return upsertProject(ctx, s.db, project)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.db, id)
}

func (s *SQLiteStore) GetProjectByPath(ctx context.Context, path string) (*domain.Project, error) {
	return getProjectByPath(ctx, s.db, path)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, opts ListOptions) ([]domain.Project, error) {
	return listProjects(ctx, s.db, opts)
}

func (s *SQLiteStore) MarkStarted(ctx context.Context, id string, at time.Time) error {
	return markStarted(ctx, s.db, id, at)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.db, id)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(&txSQLiteStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) UpsertProject(ctx context.Context, project *domain.Project) error {
	return upsertProject(ctx, s.tx, project)
}

func (s *txSQLiteStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetProjectByPath(ctx context.Context, path string) (*domain.Project, error) {
	return getProjectByPath(ctx, s.tx, path)
}

func (s *txSQLiteStore) ListProjects(ctx context.Context, opts ListOptions) ([]domain.Project, error) {
	return listProjects(ctx, s.tx, opts)
}

func (s *txSQLiteStore) MarkStarted(ctx context.Context, id string, at time.Time) error {
	return markStarted(ctx, s.tx, id, at)
}

func (s *txSQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.tx, id)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Project Operations
// =============================================================================

// projectRow represents a project row in the database.
type projectRow struct {
	ID            string  `db:"id"`
	Name          string  `db:"name"`
	Path          string  `db:"path"`
	Version       string  `db:"version"`
	Ports         string  `db:"ports"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
	LastStartedAt *string `db:"last_started_at"`
}

const projectColumns = `id, name, path, version, ports, created_at, updated_at, last_started_at`

// upsertProject inserts the project or updates the row registered for the
// same path. On return project carries the stored ID and creation time.
func upsertProject(ctx context.Context, exec executor, project *domain.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	portsJSON, err := json.Marshal(project.Ports)
	if err != nil {
		return NewStoreError("UpsertProject", "project", project.ID, "failed to serialize ports", ErrInvalidData)
	}

	query := `
		INSERT INTO projects (id, name, path, version, ports, created_at, updated_at)
		VALUES (:id, :name, :path, :version, :ports, :created_at, :updated_at)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			ports = excluded.ports,
			updated_at = excluded.updated_at`

	row := map[string]any{
		"id":         project.ID,
		"name":       project.Name,
		"path":       project.Path,
		"version":    project.Version,
		"ports":      string(portsJSON),
		"created_at": project.CreatedAt.Format(time.RFC3339),
		"updated_at": project.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.id") {
			return NewStoreError("UpsertProject", "project", project.ID, "project with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("UpsertProject", "project", project.ID, err.Error(), err)
	}

	stored, err := getProjectByPath(ctx, exec, project.Path)
	if err != nil {
		return err
	}
	*project = *stored
	return nil
}

func getProject(ctx context.Context, exec executor, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	var row projectRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", id, "project not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProject", "project", id, err.Error(), err)
	}
	return rowToProject(&row)
}

func getProjectByPath(ctx context.Context, exec executor, path string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE path = ?`

	var row projectRow
	if err := exec.GetContext(ctx, &row, query, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProjectByPath", "project", path, "project not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProjectByPath", "project", path, err.Error(), err)
	}
	return rowToProject(&row)
}

func listProjects(ctx context.Context, exec executor, opts ListOptions) ([]domain.Project, error) {
	opts = opts.Normalize()
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name ASC, path ASC LIMIT ? OFFSET ?`

	var rows []projectRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListProjects", "project", "", err.Error(), err)
	}

	projects := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		project, err := rowToProject(&row)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, nil
}

func markStarted(ctx context.Context, exec executor, id string, at time.Time) error {
	query := `UPDATE projects SET last_started_at = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("MarkStarted", "project", id, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("MarkStarted", "project", id, "project not found", ErrNotFound)
	}
	return nil
}

func deleteProject(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteProject", "project", id, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("DeleteProject", "project", id, "project not found", ErrNotFound)
	}
	return nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToProject(row *projectRow) (*domain.Project, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var lastStarted *time.Time
	if row.LastStartedAt != nil && *row.LastStartedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.LastStartedAt)
		lastStarted = &t
	}

	var ports domain.Ports
	if row.Ports != "" {
		if err := json.Unmarshal([]byte(row.Ports), &ports); err != nil {
			return nil, NewStoreError("rowToProject", "project", row.ID, "failed to parse ports", ErrInvalidData)
		}
	}

	return &domain.Project{
		ID:            row.ID,
		Name:          row.Name,
		Path:          row.Path,
		Version:       row.Version,
		Ports:         ports,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		LastStartedAt: lastStarted,
	}, nil
}
