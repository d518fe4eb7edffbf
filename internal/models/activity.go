package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityRatingCreated     ActivityType = "rating_created"
	ActivityRatingEdited      ActivityType = "rating_edited"
	ActivityRatingCompleted   ActivityType = "rating_completed"
	ActivityRatingFinalized   ActivityType = "rating_finalized"
	ActivityRatingDeleted     ActivityType = "rating_deleted"
	ActivityResponseFilled    ActivityType = "response_filled"
	ActivityResponseSubmitted ActivityType = "response_submitted"
	ActivityReviewApproved    ActivityType = "review_approved"
	ActivityRevisionRequested ActivityType = "revision_requested"
	ActivityParticipantDone   ActivityType = "participant_approved"
	ActivityDocumentUploaded  ActivityType = "document_uploaded"
	ActivityDocumentDeleted   ActivityType = "document_deleted"
)

type Activity struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	UserID        uint              `gorm:"not null;index" json:"user_id"`
	ActivityType  ActivityType      `gorm:"type:varchar(50);not null;index" json:"activity_type"`
	RatingID      *uint             `gorm:"index" json:"rating_id,omitempty"`
	ParticipantID *uint             `gorm:"index" json:"participant_id,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Activity) TableName() string {
	return "activities"
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Unit{},
		&Department{},
		&User{},
		&Rating{},
		&RatingItem{},
		&RatingParticipant{},
		&RatingResponse{},
		&RatingApproval{},
		&Document{},
		&Activity{},
	}
}
