package database

import (
	"aaisaheb/models"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var sqliteDB *gorm.DB

// OpenSQLite opens (or creates) the interception log database and migrates it.
// An empty path opens an in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := "file::memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if path == "" {
		// every pooled connection would otherwise get its own empty memory database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	sqliteDB = db
	logrus.Infof("📦 Offline request log: %s", dsn)
	return db, nil
}

// RunMigrations creates the interception log schema
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.OfflineRequest{}); err != nil {
		return fmt.Errorf("failed to migrate offline requests: %w", err)
	}
	return nil
}

// CloseSQLite releases the handle opened by OpenSQLite
func CloseSQLite() error {
	if sqliteDB == nil {
		return nil
	}
	sqlDB, err := sqliteDB.DB()
	sqliteDB = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
