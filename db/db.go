// Package db keeps the per-chain SQLite databases: the latest observed
// head, the validator database and price history.
package db

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chainwatch/chainwatch/store"
)

const (
	inMemoryDSN = ":memory:"

	// fileDSNParams enables WAL so API reads do not block the writers.
	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000&mode=rwc"

	dirPermissions = 0o750
)

// models are auto-migrated when a database is opened with migrate set.
var models = []any{
	&store.ChainState{},
	&store.Validator{},
	&store.PriceSnapshot{},
}

// DB is one chain's database.
type DB struct {
	client *gorm.DB
}

// OpenFileDB opens or creates <dir>/<filename>, creating dir if needed.
func OpenFileDB(dir, filename string, migrate bool) (*DB, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to prepare database path %s", dir)
	}
	return open(filepath.Join(dir, filename)+fileDSNParams, migrate)
}

// OpenInMemoryDB opens a database that lives as long as the returned DB.
func OpenInMemoryDB(migrate bool) (*DB, error) {
	return open(inMemoryDSN, migrate)
}

func open(dsn string, migrate bool) (*DB, error) {
	client, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	if migrate {
		if err := client.AutoMigrate(models...); err != nil {
			return nil, errors.Wrap(err, "failed to migrate schema")
		}
	}

	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// One connection serializes the data, price and event writers of a
	// chain and keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &DB{client: client}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "failed to close database")
}
