package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ether/easysync/lib/models/db"
)

// sqlStore holds the queries shared by the SQL backends. The backends only
// differ in placeholder format and in how an upsert is spelled.
type sqlStore struct {
	sqlDB   *sql.DB
	builder sq.StatementBuilderType
	// padUpsert is appended to the pad insert so that an existing row is
	// updated instead.
	padUpsert string
	// revisionInsertIgnore is appended to the revision insert so that an
	// existing revision is kept.
	revisionInsertIgnore string
}

// ============== PAD METHODS ==============

func (d sqlStore) CreatePad(padID string, padDB db.PadDB) error {
	pool, err := json.Marshal(padDB.Pool)
	if err != nil {
		return fmt.Errorf("error marshaling pool: %w", err)
	}

	createdAt := padDB.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	resultedSQL, args, err := d.builder.
		Insert("pad").
		Columns(padColumns...).
		Values(padID, padDB.Head, string(pool), padDB.ATextText, padDB.ATextAttribs,
			createdAt.UnixMilli(), time.Now().UnixMilli()).
		Suffix(d.padUpsert).
		ToSql()

	if err != nil {
		return err
	}

	_, err = d.sqlDB.Exec(resultedSQL, args...)
	return err
}

func (d sqlStore) GetPad(padID string) (*db.PadDB, error) {
	resultedSQL, args, err := d.builder.
		Select(padColumns...).
		From("pad").
		Where(sq.Eq{"id": padID}).
		ToSql()

	if err != nil {
		return nil, err
	}

	padDB, err := ReadToPadDB(d.sqlDB.QueryRow(resultedSQL, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPadNotFound
		}
		return nil, err
	}
	return padDB, nil
}

func (d sqlStore) DoesPadExist(padID string) (*bool, error) {
	resultedSQL, args, err := d.builder.
		Select("1").
		From("pad").
		Where(sq.Eq{"id": padID}).
		Limit(1).
		ToSql()

	if err != nil {
		return nil, err
	}

	var exists int
	err = d.sqlDB.QueryRow(resultedSQL, args...).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		falseVal := false
		return &falseVal, nil
	}
	if err != nil {
		return nil, err
	}

	trueVal := true
	return &trueVal, nil
}

func (d sqlStore) RemovePad(padID string) error {
	tx, err := d.sqlDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	revSQL, revArgs, err := d.builder.
		Delete("pad_revision").
		Where(sq.Eq{"pad_id": padID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(revSQL, revArgs...); err != nil {
		return err
	}

	padSQL, padArgs, err := d.builder.
		Delete("pad").
		Where(sq.Eq{"id": padID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(padSQL, padArgs...); err != nil {
		return err
	}
	return tx.Commit()
}

func (d sqlStore) GetPadIds() (*[]string, error) {
	resultedSQL, args, err := d.builder.
		Select("id").
		From("pad").
		OrderBy("id ASC").
		ToSql()

	if err != nil {
		return nil, err
	}

	query, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	padIds := make([]string, 0)
	for query.Next() {
		var padId string
		if err := query.Scan(&padId); err != nil {
			return nil, err
		}
		padIds = append(padIds, padId)
	}

	return &padIds, query.Err()
}

// ============== REVISION METHODS ==============

func (d sqlStore) SaveRevision(padID string, rev db.RevisionDB) error {
	values, err := revisionValues(padID, rev)
	if err != nil {
		return err
	}

	toSql, args, err := d.builder.
		Insert("pad_revision").
		Columns(revisionColumns...).
		Values(values...).
		Suffix(d.revisionInsertIgnore).
		ToSql()

	if err != nil {
		return err
	}

	_, err = d.sqlDB.Exec(toSql, args...)
	return err
}

func (d sqlStore) GetRevision(padID string, rev int) (*db.RevisionDB, error) {
	retrievedSql, args, err := d.builder.
		Select(revisionColumns...).
		From("pad_revision").
		Where(sq.Eq{"pad_id": padID}).
		Where(sq.Eq{"rev_num": rev}).
		ToSql()

	if err != nil {
		return nil, err
	}

	revisionDB, err := ReadToRevisionDB(d.sqlDB.QueryRow(retrievedSql, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning revision: %w", err)
	}
	return revisionDB, nil
}

func (d sqlStore) GetRevisions(padID string, startRev int, endRev int) (*[]db.RevisionDB, error) {
	revisions := make([]db.RevisionDB, 0)
	if startRev > endRev {
		return &revisions, nil
	}

	resultedSQL, args, err := d.builder.
		Select(revisionColumns...).
		From("pad_revision").
		Where(sq.Eq{"pad_id": padID}).
		Where(sq.GtOrEq{"rev_num": startRev}).
		Where(sq.LtOrEq{"rev_num": endRev}).
		OrderBy("rev_num ASC").
		ToSql()

	if err != nil {
		return nil, err
	}

	query, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	for query.Next() {
		revisionDB, err := ReadToRevisionDB(query)
		if err != nil {
			return nil, fmt.Errorf("error scanning revision: %w", err)
		}
		revisions = append(revisions, *revisionDB)
	}

	if err := query.Err(); err != nil {
		return nil, err
	}

	if len(revisions) != (endRev - startRev + 1) {
		return nil, ErrRevisionNotFound
	}

	return &revisions, nil
}

// ============== LIFECYCLE ==============

func (d sqlStore) Close() error {
	return d.sqlDB.Close()
}
