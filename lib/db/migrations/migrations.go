package migrations

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// Migration is one schema step. Up runs inside the transaction that also
// records the new version.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx, dialect Dialect) error
}

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectMySQL
)

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

const versionTable = "schema_migrations"

type MigrationManager struct {
	db         *sql.DB
	dialect    Dialect
	builder    sq.StatementBuilderType
	migrations []Migration
	logger     *zap.SugaredLogger
}

func NewMigrationManager(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger) *MigrationManager {
	migrations := GetMigrations()
	slices.SortFunc(migrations, func(a, b Migration) int {
		return a.Version - b.Version
	})
	return &MigrationManager{
		db:         db,
		dialect:    dialect,
		builder:    sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		migrations: migrations,
		logger:     logger,
	}
}

// Run applies every migration newer than the recorded schema version.
func (m *MigrationManager) Run() error {
	if err := m.createVersionTable(); err != nil {
		return fmt.Errorf("creating %s: %w", versionTable, err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		m.logger.Infow("applying migration",
			"dialect", m.dialect.String(),
			"version", migration.Version,
			"description", migration.Description,
		)
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := migration.Up(tx, m.dialect); err != nil {
		return err
	}
	_, err = m.builder.
		Insert(versionTable).
		Columns("version", "description", "applied_at").
		Values(migration.Version, migration.Description, time.Now().UTC()).
		RunWith(tx).
		Exec()
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MigrationManager) createVersionTable() error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if m.dialect == DialectMySQL {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255),
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion is the highest applied migration, 0 for a fresh database.
func (m *MigrationManager) CurrentVersion() (int, error) {
	var version int
	err := m.builder.
		Select("COALESCE(MAX(version), 0)").
		From(versionTable).
		RunWith(m.db).
		QueryRow().
		Scan(&version)
	return version, err
}
