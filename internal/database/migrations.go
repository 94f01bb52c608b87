package database

import (
	"errors"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillUserGrades     = "2026-09-14_backfill_user_grades"
	migrationClampNegativeDownloads = "2026-10-02_clamp_negative_total_downloads"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillUserGrades, apply: backfillUserGrades},
		{name: migrationClampNegativeDownloads, apply: clampNegativeDownloads},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows imported before grades existed carry an empty grade; they are guests.
func backfillUserGrades(db *gorm.DB) error {
	return db.Model(&models.User{}).
		Where("grade = '' OR grade IS NULL").
		Update("grade", models.GradeGuest).Error
}

func clampNegativeDownloads(db *gorm.DB) error {
	return db.Model(&models.User{}).
		Where("total_downloads < 0").
		Update("total_downloads", 0).Error
}
