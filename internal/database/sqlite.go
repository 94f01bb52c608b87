package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite establishes the remote store connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate creates the entity tables and applies named data migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	schema := append(models.All(), &migrationRecord{})
	if err := db.AutoMigrate(schema...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
