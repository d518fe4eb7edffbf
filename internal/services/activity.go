package services

import (
	"context"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/gorm"
)

const maxActivityLimit = 200

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{
		db: db,
	}
}

// recordActivity writes an audit row through tx so it commits or rolls back
// together with the transition it describes.
func recordActivity(tx *gorm.DB, userID uint, activityType models.ActivityType, ratingID, participantID *uint, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	activity := models.Activity{
		UserID:        userID,
		ActivityType:  activityType,
		RatingID:      ratingID,
		ParticipantID: participantID,
		Metadata:      metadata,
	}

	return tx.Create(&activity).Error
}

func (s *ActivityService) GetRecentActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = 20
	}

	var activities []models.Activity
	err := s.db.WithContext(ctx).Preload("User").
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

// ListRatingActivities returns the audit trail of one rating, oldest first.
func (s *ActivityService) ListRatingActivities(ctx context.Context, ratingID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.WithContext(ctx).Preload("User").
		Where("rating_id = ?", ratingID).
		Order("created_at asc, id asc").
		Find(&activities).Error
	return activities, err
}

func uintPtr(v uint) *uint {
	return &v
}
