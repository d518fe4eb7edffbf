package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logging.Module(logger, "database"), 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	logger.Info("database connected")
	return db, nil
}

// RunMigrations creates or updates the schema for every model.
func RunMigrations(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Rating{}, "Reviewers", &models.RatingReviewer{}); err != nil {
		return fmt.Errorf("failed to set up rating reviewers join table: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
