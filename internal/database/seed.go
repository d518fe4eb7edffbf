package database

import (
	"log/slog"
	"os"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/utils"
	"gorm.io/gorm"
)

// SeedAdmin creates a default admin account if no admin exists in the database
func SeedAdmin(db *gorm.DB, logger *slog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Info("admin user already exists, skipping seed")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@rating.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	generated := adminPassword == ""
	if generated {
		token, err := utils.GenerateSecureToken(12)
		if err != nil {
			return err
		}
		adminPassword = token
	}

	hashedPassword, err := utils.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		FirstName:    "System",
		LastName:     "Administrator",
		IsAuthor:     true,
	}

	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	if generated {
		logger.Warn("created default admin user with a generated password, change it after first login",
			slog.String("email", adminEmail),
			slog.String("password", adminPassword))
		return nil
	}
	logger.Info("created default admin user", slog.String("email", adminEmail))
	return nil
}
