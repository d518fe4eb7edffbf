package main

import (
	"os"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
	"github.com/Byak-ko/Qualification-work-sub001/internal/database"
	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/joho/godotenv"
)

const batchSize = 100

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	search := services.NewSearchService(cfg, logger)

	var dbCount int64
	if err := db.Model(&models.Rating{}).Count(&dbCount).Error; err != nil {
		logger.Error("failed to count ratings", "error", err)
		os.Exit(1)
	}
	indexCount, err := search.GetRatingCount()
	if err != nil {
		logger.Error("failed to count indexed ratings", "error", err)
		os.Exit(1)
	}
	logger.Info("starting reindex", "db_count", dbCount, "index_count", indexCount)

	indexed, failed := 0, 0
	for offset := 0; ; offset += batchSize {
		var ratings []models.Rating
		if err := db.Order("id").Limit(batchSize).Offset(offset).Find(&ratings).Error; err != nil {
			logger.Error("failed to fetch ratings", "offset", offset, "error", err)
			os.Exit(1)
		}
		if len(ratings) == 0 {
			break
		}

		if err := search.IndexRatings(ratings); err != nil {
			failed += len(ratings)
			logger.Warn("failed to index batch", "offset", offset, "error", err)
		} else {
			indexed += len(ratings)
			logger.Info("indexed batch", "size", len(ratings), "total", indexed)
		}

		// Meilisearch queues tasks; give it room between batches.
		time.Sleep(100 * time.Millisecond)
	}

	finalCount, err := search.GetRatingCount()
	if err != nil {
		logger.Warn("failed to read final index count", "error", err)
	}
	logger.Info("reindex completed", "indexed", indexed, "failed", failed, "index_count", finalCount)
}
