package models

import (
	"time"
)

type RatingType string

const (
	RatingTypeScientific                RatingType = "SCIENTIFIC"
	RatingTypeEducationalMethodical     RatingType = "EDUCATIONAL_METHODICAL"
	RatingTypeOrganizationalEducational RatingType = "ORGANIZATIONAL_EDUCATIONAL"
)

func (t RatingType) Valid() bool {
	switch t {
	case RatingTypeScientific, RatingTypeEducationalMethodical, RatingTypeOrganizationalEducational:
		return true
	}
	return false
}

// RatingStatus only moves forward: CREATED -> PENDING -> CLOSED.
type RatingStatus string

const (
	RatingStatusCreated RatingStatus = "CREATED"
	RatingStatusPending RatingStatus = "PENDING"
	RatingStatusClosed  RatingStatus = "CLOSED"
)

func (s RatingStatus) Valid() bool {
	switch s {
	case RatingStatusCreated, RatingStatusPending, RatingStatusClosed:
		return true
	}
	return false
}

type Rating struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Title     string       `gorm:"size:300;not null" json:"title"`
	Type      RatingType   `gorm:"type:varchar(40);not null" json:"type"`
	Status    RatingStatus `gorm:"type:varchar(20);not null;default:'CREATED';index" json:"status"`
	AuthorID  uint         `gorm:"not null;index" json:"author_id"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Relations
	Author       User                `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Items        []RatingItem        `gorm:"foreignKey:RatingID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Participants []RatingParticipant `gorm:"foreignKey:RatingID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Reviewers    []User              `gorm:"many2many:rating_reviewers;" json:"reviewers,omitempty"`
}

func (Rating) TableName() string {
	return "ratings"
}

// RatingReviewer is the join row behind Rating.Reviewers.
type RatingReviewer struct {
	RatingID uint `gorm:"primaryKey"`
	UserID   uint `gorm:"primaryKey"`
}

func (RatingReviewer) TableName() string {
	return "rating_reviewers"
}

type RatingItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	RatingID  uint    `gorm:"not null;index" json:"rating_id"`
	Name      string  `gorm:"size:500;not null" json:"name"`
	MaxScore  float64 `gorm:"not null" json:"max_score"`
	Comment   string  `gorm:"type:text" json:"comment"`
	IsDocNeed bool    `gorm:"default:false" json:"is_doc_need"`
}

func (RatingItem) TableName() string {
	return "rating_items"
}
