package db

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ether/easysync/lib/db/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresDB struct {
	sqlStore
	options PostgresOptions
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresOptions struct {
	Username string
	Password string
	Port     int
	Host     string
	Database string
}

func (o PostgresOptions) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", o.Username, o.Password, o.Host, o.Port, o.Database)
}

// NewPostgresDB This function creates a new PostgresDB and returns a pointer to it.
func NewPostgresDB(options PostgresOptions, logger *zap.SugaredLogger) (*PostgresDB, error) {
	sqlDb, err := sql.Open("postgres", options.URL())
	if err != nil {
		return nil, err
	}
	if err := sqlDb.Ping(); err != nil {
		sqlDb.Close()
		return nil, err
	}

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectPostgres, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresDB{
		sqlStore: sqlStore{
			sqlDB:   sqlDb,
			builder: psql,
			// postgres understands the same upsert as sqlite
			padUpsert:            sqlitePadUpsert,
			revisionInsertIgnore: "ON CONFLICT(pad_id, rev_num) DO NOTHING",
		},
		options: options,
	}, nil
}

var _ DataStore = (*PostgresDB)(nil)
