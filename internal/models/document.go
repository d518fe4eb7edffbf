package models

import (
	"time"
)

// Document is an uploaded supporting file. Once attached to a response it
// points back at the participant and rating item it supports.
type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	URL           string    `gorm:"size:500" json:"url"`
	ObjectKey     string    `gorm:"size:500;not null;uniqueIndex" json:"-"`
	MimeType      string    `gorm:"size:100;not null" json:"mime_type"`
	FileSize      int64     `gorm:"not null" json:"file_size"`
	UploadedByID  uint      `gorm:"not null;index" json:"uploaded_by_id"`
	ParticipantID *uint     `gorm:"index" json:"participant_id,omitempty"`
	ItemID        *uint     `gorm:"index" json:"item_id,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`

	// Relations
	Uploader User `gorm:"foreignKey:UploadedByID" json:"uploader,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
