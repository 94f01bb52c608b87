package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsGradesAndClampsCounters(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&models.User{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := models.User{ID: "user-1", Name: "Legacy", TotalDownloads: -3}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert user: %v", err)
	}
	if err := database.Model(&models.User{}).Where("id = ?", "user-1").Update("grade", "").Error; err != nil {
		testContext.Fatalf("failed to blank grade: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored models.User
	if err := database.Where("id = ?", "user-1").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload user: %v", err)
	}
	if stored.Grade != models.GradeGuest {
		testContext.Fatalf("expected grade to be backfilled to guest, got %q", stored.Grade)
	}
	if stored.TotalDownloads != 0 {
		testContext.Fatalf("expected total downloads to be clamped, got %d", stored.TotalDownloads)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected 2 migration records, got %d", count)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second migration pass failed: %v", err)
	}
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to recount migration records: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected migrations to be recorded once, got %d", count)
	}
}

func TestOpenSQLiteCreatesEntityTables(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "remote.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	for _, table := range []string{"users", "server_files", "patch_notes", "download_logs", "activity_logs", "bug_reports", "documentation", "system_metrics"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}
