// Package migrate applies the embedded IAM schema migrations and seeds with goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

const (
	defaultMigrationsDir   = "migrations"
	defaultSeedsDir        = "seeds"
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"
)

// goose keeps its base FS, dialect and table name in package state.
var gooseMu sync.Mutex

// Manager executes SQL migrations and seed files from an fs.FS.
type Manager struct {
	db              *sql.DB
	dialect         string
	files           fs.FS
	migrationsDir   string
	seedsDir        string
	migrationsTable string
	seedsTable      string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

// WithSeedsTable overrides the default seeds bookkeeping table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

// WithDirs overrides the migrations and seeds directories inside files.
func WithDirs(migrationsDir, seedsDir string) Option {
	return func(m *Manager) {
		if migrationsDir != "" {
			m.migrationsDir = migrationsDir
		}
		if seedsDir != "" {
			m.seedsDir = seedsDir
		}
	}
}

// NewManager constructs a Manager for dialect ("postgres" or "sqlite3").
func NewManager(db *sql.DB, dialect string, files fs.FS, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		dialect:         dialect,
		files:           files,
		migrationsDir:   defaultMigrationsDir,
		seedsDir:        defaultSeedsDir,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	return m.with(m.migrationsTable, func() error {
		if err := goose.UpContext(ctx, m.db, m.migrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.with(m.migrationsTable, func() error {
		version, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return err
		}
		if version == 0 {
			return errors.New("no migrations applied")
		}
		if err := goose.DownContext(ctx, m.db, m.migrationsDir); err != nil {
			return fmt.Errorf("rollback migration %d: %w", version, err)
		}
		return nil
	})
}

// Status returns the applied migrations in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	var applied []string
	err := m.with(m.migrationsTable, func() error {
		version, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return err
		}
		migrations, err := goose.CollectMigrations(m.migrationsDir, 0, goose.MaxVersion)
		if err != nil {
			return err
		}
		for _, mig := range migrations {
			if mig.Version <= version {
				applied = append(applied, path.Base(mig.Source))
			}
		}
		return nil
	})
	return applied, err
}

// Seed applies seed files once each, tracked in the seeds table.
func (m *Manager) Seed(ctx context.Context) error {
	return m.with(m.seedsTable, func() error {
		if err := goose.UpContext(ctx, m.db, m.seedsDir, goose.WithAllowMissing()); err != nil {
			return fmt.Errorf("apply seeds: %w", err)
		}
		return nil
	})
}

func (m *Manager) with(table string, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.files)
	defer goose.SetBaseFS(nil)
	goose.SetTableName(table)
	defer goose.SetTableName(defaultMigrationsTable)
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return fn()
}
