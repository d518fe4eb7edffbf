package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewLevel string

const (
	LevelDepartment ReviewLevel = "DEPARTMENT"
	LevelUnit       ReviewLevel = "UNIT"
	LevelAuthor     ReviewLevel = "AUTHOR"
)

// ApprovalStatus keeps "ready for this reviewer" and "sent back" apart.
type ApprovalStatus string

const (
	// ApprovalPending: the chain has not reached this level yet.
	ApprovalPending ApprovalStatus = "PENDING"
	// ApprovalAwaitingReview: this reviewer is expected to act now.
	ApprovalAwaitingReview ApprovalStatus = "AWAITING_REVIEW"
	ApprovalApproved       ApprovalStatus = "APPROVED"
	// ApprovalRevisionRequested: this reviewer sent the participant back.
	ApprovalRevisionRequested ApprovalStatus = "REVISION_REQUESTED"
)

// ItemComments maps rating item id to reviewer remark.
type ItemComments map[uint]string

type RatingApproval struct {
	ID            uint                            `gorm:"primaryKey" json:"id"`
	ParticipantID uint                            `gorm:"not null;uniqueIndex:idx_approval_participant_level" json:"participant_id"`
	ReviewerID    uint                            `gorm:"not null;index" json:"reviewer_id"`
	Status        ApprovalStatus                  `gorm:"type:varchar(30);not null;default:'PENDING'" json:"status"`
	ReviewLevel   ReviewLevel                     `gorm:"type:varchar(20);not null;uniqueIndex:idx_approval_participant_level" json:"review_level"`
	Comments      datatypes.JSONType[ItemComments] `json:"comments"`
	DecidedAt     *time.Time                      `json:"decided_at,omitempty"`
	CreatedAt     time.Time                       `json:"created_at"`
	UpdatedAt     time.Time                       `json:"updated_at"`

	// Relations
	Reviewer User `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

func (RatingApproval) TableName() string {
	return "rating_approvals"
}
