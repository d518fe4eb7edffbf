package models

import (
	"time"

	"gorm.io/datatypes"
)

// ItemScores maps rating item id to the respondent's score.
type ItemScores map[uint]float64

// ItemDocuments maps rating item id to the ids of the supporting documents.
type ItemDocuments map[uint][]uint

// RatingResponse holds the single active response of a participant. Missing
// keys mean score 0 and no documents.
type RatingResponse struct {
	ID            uint                              `gorm:"primaryKey" json:"id"`
	RatingID      uint                              `gorm:"not null;index" json:"rating_id"`
	RespondentID  uint                              `gorm:"not null;index" json:"respondent_id"`
	ParticipantID uint                              `gorm:"not null;uniqueIndex" json:"participant_id"`
	Scores        datatypes.JSONType[ItemScores]    `json:"scores"`
	Documents     datatypes.JSONType[ItemDocuments] `json:"documents"`
	CreatedAt     time.Time                         `json:"created_at"`
	UpdatedAt     time.Time                         `json:"updated_at"`
}

func (RatingResponse) TableName() string {
	return "rating_responses"
}

// ScoreMap returns a writable copy of the scores.
func (r *RatingResponse) ScoreMap() ItemScores {
	out := ItemScores{}
	for k, v := range r.Scores.Data() {
		out[k] = v
	}
	return out
}

// DocumentMap returns a writable copy of the document lists.
func (r *RatingResponse) DocumentMap() ItemDocuments {
	out := ItemDocuments{}
	for k, v := range r.Documents.Data() {
		out[k] = append([]uint(nil), v...)
	}
	return out
}

// TotalScore sums all item scores.
func (r *RatingResponse) TotalScore() float64 {
	var total float64
	for _, v := range r.Scores.Data() {
		total += v
	}
	return total
}
