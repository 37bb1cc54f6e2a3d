package db

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ether/easysync/lib/db/migrations"
	mysql2 "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type MysqlDB struct {
	sqlStore
	options MySQLOptions
}

type MySQLOptions struct {
	Username string
	Password string
	Port     int
	Host     string
	Database string
}

func NewMySQLDB(options MySQLOptions, logger *zap.SugaredLogger) (*MysqlDB, error) {
	mySQLConf := mysql2.NewConfig()
	mySQLConf.User = options.Username
	mySQLConf.Passwd = options.Password
	mySQLConf.Net = "tcp"
	mySQLConf.Addr = fmt.Sprintf("%s:%d", options.Host, options.Port)
	mySQLConf.DBName = options.Database

	sqlDb, err := sql.Open("mysql", mySQLConf.FormatDSN())
	if err != nil {
		return nil, err
	}

	sqlDb.SetMaxOpenConns(25)
	sqlDb.SetMaxIdleConns(5)

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectMySQL, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &MysqlDB{
		sqlStore: sqlStore{
			sqlDB:   sqlDb,
			builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
			padUpsert: `ON DUPLICATE KEY UPDATE
			head = VALUES(head),
			pool = VALUES(pool),
			atext_text = VALUES(atext_text),
			atext_attribs = VALUES(atext_attribs),
			updated_at = VALUES(updated_at)`,
			revisionInsertIgnore: "ON DUPLICATE KEY UPDATE rev_num = rev_num",
		},
		options: options,
	}, nil
}

var _ DataStore = (*MysqlDB)(nil)
