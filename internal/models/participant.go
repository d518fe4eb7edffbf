package models

import (
	"time"
)

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "PENDING"
	ParticipantFilled   ParticipantStatus = "FILLED"
	ParticipantApproved ParticipantStatus = "APPROVED"
	ParticipantRevision ParticipantStatus = "REVISION"
)

// RatingParticipant is a respondent's instance of a rating. Version is bumped
// on every workflow write and used as an optimistic lock.
type RatingParticipant struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	RatingID             uint              `gorm:"not null;uniqueIndex:idx_participant_rating_respondent" json:"rating_id"`
	RespondentID         uint              `gorm:"not null;uniqueIndex:idx_participant_rating_respondent;index" json:"respondent_id"`
	DepartmentReviewerID *uint             `gorm:"index" json:"department_reviewer_id,omitempty"`
	UnitReviewerID       *uint             `gorm:"index" json:"unit_reviewer_id,omitempty"`
	CustomerReviewerID   uint              `gorm:"not null" json:"customer_reviewer_id"`
	Status               ParticipantStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Version              int               `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`

	// Relations
	Rating             *Rating          `gorm:"foreignKey:RatingID" json:"rating,omitempty"`
	Respondent         User             `gorm:"foreignKey:RespondentID" json:"respondent,omitempty"`
	DepartmentReviewer *User            `gorm:"foreignKey:DepartmentReviewerID" json:"department_reviewer,omitempty"`
	UnitReviewer       *User            `gorm:"foreignKey:UnitReviewerID" json:"unit_reviewer,omitempty"`
	CustomerReviewer   User             `gorm:"foreignKey:CustomerReviewerID" json:"customer_reviewer,omitempty"`
	Responses          []RatingResponse `gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
	Approvals          []RatingApproval `gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`
}

func (RatingParticipant) TableName() string {
	return "rating_participants"
}

// ApprovalAt returns the loaded approval for a level, if any.
func (p *RatingParticipant) ApprovalAt(level ReviewLevel) *RatingApproval {
	for i := range p.Approvals {
		if p.Approvals[i].ReviewLevel == level {
			return &p.Approvals[i]
		}
	}
	return nil
}
