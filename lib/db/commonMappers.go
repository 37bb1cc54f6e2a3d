package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/models/db"
)

type Reader interface {
	Scan(dest ...any) error
}

var padColumns = []string{"id", "head", "pool", "atext_text", "atext_attribs", "created_at", "updated_at"}

var revisionColumns = []string{"pad_id", "rev_num", "changeset", "author_id", "timestamp",
	"atext_text", "atext_attribs", "pool"}

func ReadToPadDB(reader Reader) (*db.PadDB, error) {
	var padDB db.PadDB
	var pool string
	var createdAt int64
	var updatedAt sql.NullInt64

	if err := reader.Scan(&padDB.ID, &padDB.Head, &pool, &padDB.ATextText, &padDB.ATextAttribs,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pool), &padDB.Pool); err != nil {
		return nil, fmt.Errorf("error unmarshaling pool: %w", err)
	}
	padDB.CreatedAt = time.UnixMilli(createdAt)
	if updatedAt.Valid {
		updated := time.UnixMilli(updatedAt.Int64)
		padDB.UpdatedAt = &updated
	}
	return &padDB, nil
}

func ReadToRevisionDB(reader Reader) (*db.RevisionDB, error) {
	var revisionDB db.RevisionDB
	var authorId, atextText, atextAttribs, pool sql.NullString

	if err := reader.Scan(&revisionDB.PadId, &revisionDB.RevNum, &revisionDB.Changeset, &authorId,
		&revisionDB.Timestamp, &atextText, &atextAttribs, &pool,
	); err != nil {
		return nil, err
	}
	if authorId.Valid {
		revisionDB.AuthorId = &authorId.String
	}
	if atextText.Valid && atextAttribs.Valid {
		revisionDB.AText = &apool.AText{Text: atextText.String, Attribs: atextAttribs.String}
	}
	if pool.Valid {
		var jsonPool apool.JsonablePool
		if err := json.Unmarshal([]byte(pool.String), &jsonPool); err != nil {
			return nil, fmt.Errorf("error deserializing pool: %w", err)
		}
		revisionDB.Pool = &jsonPool
	}
	return &revisionDB, nil
}

// revisionValues flattens a revision into the values of revisionColumns.
func revisionValues(padID string, rev db.RevisionDB) ([]any, error) {
	var atextText, atextAttribs, pool sql.NullString
	if rev.AText != nil {
		atextText = sql.NullString{String: rev.AText.Text, Valid: true}
		atextAttribs = sql.NullString{String: rev.AText.Attribs, Valid: true}
	}
	if rev.Pool != nil {
		marshalled, err := json.Marshal(rev.Pool)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pool: %w", err)
		}
		pool = sql.NullString{String: string(marshalled), Valid: true}
	}
	var authorId sql.NullString
	if rev.AuthorId != nil {
		authorId = sql.NullString{String: *rev.AuthorId, Valid: true}
	}
	return []any{padID, rev.RevNum, rev.Changeset, authorId, rev.Timestamp, atextText, atextAttribs, pool}, nil
}
