package migrations

import (
	"database/sql"
)

// GetMigrations returns all available migrations
func GetMigrations() []Migration {
	return []Migration{
		migration001InitialSchema(),
		migration002RevisionAuthorIndex(),
	}
}

// migration001InitialSchema creates the pad and revision tables
func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "Initial schema - create pad and pad_revision",
		Up: func(tx *sql.Tx, dialect Dialect) error {
			var queries []string

			switch dialect {
			case DialectMySQL:
				queries = getMySQLInitialSchema()
			case DialectPostgres:
				queries = getPostgresInitialSchema()
			default:
				queries = getSQLiteInitialSchema()
			}

			return execAll(tx, queries)
		},
	}
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func getSQLiteInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS pad (
			id TEXT PRIMARY KEY,
			head INTEGER NOT NULL DEFAULT -1,
			pool TEXT NOT NULL,
			atext_text TEXT NOT NULL,
			atext_attribs TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS pad_revision (
			pad_id TEXT NOT NULL,
			rev_num INTEGER NOT NULL,
			changeset TEXT NOT NULL,
			author_id TEXT,
			timestamp BIGINT NOT NULL,
			atext_text TEXT,
			atext_attribs TEXT,
			pool TEXT,
			PRIMARY KEY (pad_id, rev_num)
		)`,
	}
}

func getPostgresInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS pad (
			id TEXT PRIMARY KEY,
			head INTEGER NOT NULL DEFAULT -1,
			pool TEXT NOT NULL,
			atext_text TEXT NOT NULL,
			atext_attribs TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS pad_revision (
			pad_id TEXT NOT NULL,
			rev_num INTEGER NOT NULL,
			changeset TEXT NOT NULL,
			author_id TEXT,
			timestamp BIGINT NOT NULL,
			atext_text TEXT,
			atext_attribs TEXT,
			pool TEXT,
			PRIMARY KEY (pad_id, rev_num)
		)`,
	}
}

func getMySQLInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS pad (
			id VARCHAR(255) PRIMARY KEY,
			head INT NOT NULL DEFAULT -1,
			pool LONGTEXT NOT NULL,
			atext_text LONGTEXT NOT NULL,
			atext_attribs LONGTEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT
		) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS pad_revision (
			pad_id VARCHAR(255) NOT NULL,
			rev_num INT NOT NULL,
			changeset LONGTEXT NOT NULL,
			author_id VARCHAR(255),
			timestamp BIGINT NOT NULL,
			atext_text LONGTEXT,
			atext_attribs LONGTEXT,
			pool LONGTEXT,
			PRIMARY KEY (pad_id, rev_num)
		) DEFAULT CHARSET=utf8mb4`,
	}
}
