package migrations

import "database/sql"

// migration002RevisionAuthorIndex speeds up looking up the revisions of an
// author.
func migration002RevisionAuthorIndex() Migration {
	return Migration{
		Version:     2,
		Description: "Index pad_revision by author",
		Up: func(tx *sql.Tx, dialect Dialect) error {
			query := "CREATE INDEX IF NOT EXISTS idx_pad_revision_author ON pad_revision (author_id)"
			if dialect == DialectMySQL {
				// mysql has no IF NOT EXISTS for indexes; the version table
				// guarantees a single run
				query = "CREATE INDEX idx_pad_revision_author ON pad_revision (author_id)"
			}
			_, err := tx.Exec(query)
			return err
		},
	}
}
