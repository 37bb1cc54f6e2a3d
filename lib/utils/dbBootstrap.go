package utils

import (
	"errors"
	"strconv"

	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/settings"
	"go.uber.org/zap"
)

func parsePort(port string, fallback int) (int, error) {
	if port == "" {
		return fallback, nil
	}
	return strconv.Atoi(port)
}

func GetDB(retrievedSettings settings.Settings, setupLogger *zap.SugaredLogger) (db.DataStore, error) {
	dbSettings := retrievedSettings.DBSettings
	switch retrievedSettings.DBType {
	case settings.SQLITE:
		setupLogger.Infof("Using SQLite database at %s", dbSettings.Filename)
		return db.NewSQLiteDB(dbSettings.Filename, setupLogger)
	case settings.MEMORY:
		setupLogger.Info("Using in-memory database (data will be lost on restart)")
		return db.NewMemoryDataStore(), nil
	case settings.POSTGRES:
		setupLogger.Infof("Using Postgres database at %s with database %s", dbSettings.Host, dbSettings.Database)

		port, err := parsePort(dbSettings.Port, 5432)
		if err != nil {
			return nil, err
		}

		return db.NewPostgresDB(db.PostgresOptions{
			Username: dbSettings.User,
			Password: dbSettings.Password,
			Host:     dbSettings.Host,
			Database: dbSettings.Database,
			Port:     port,
		}, setupLogger)
	case settings.MYSQL:
		setupLogger.Infof("Using MySQL database at %s with database %s", dbSettings.Host, dbSettings.Database)

		port, err := parsePort(dbSettings.Port, 3306)
		if err != nil {
			return nil, err
		}

		return db.NewMySQLDB(db.MySQLOptions{
			Username: dbSettings.User,
			Password: dbSettings.Password,
			Host:     dbSettings.Host,
			Database: dbSettings.Database,
			Port:     port,
		}, setupLogger)
	case settings.REDIS:
		if dbSettings.Url != "" {
			setupLogger.Info("Using Redis database from the configured url")
			return db.NewRedisDB(db.RedisOptions{URL: dbSettings.Url})
		}
		port, err := parsePort(dbSettings.Port, 6379)
		if err != nil {
			return nil, err
		}
		setupLogger.Infof("Using Redis database at %s:%d", dbSettings.Host, port)
		return db.NewRedisDB(db.RedisOptions{
			Addr:     dbSettings.Host + ":" + strconv.Itoa(port),
			Password: dbSettings.Password,
		})
	}
	return nil, errors.New("unsupported database type")
}
