package models

import (
	"time"
)

type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:'TEACHER'" json:"role"`
	FirstName    string    `gorm:"size:100;not null" json:"first_name"`
	LastName     string    `gorm:"size:100;not null" json:"last_name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Degree       string    `gorm:"size:100" json:"degree"`
	Position     string    `gorm:"size:100" json:"position"`
	IsAuthor     bool      `gorm:"default:false" json:"is_author"`
	DepartmentID *uint     `gorm:"index" json:"department_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// FullName returns "Last First", the order used in reports and emails.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.LastName + " " + u.FirstName
}

// CanAuthorRatings reports whether the user may create ratings.
func (u User) CanAuthorRatings() bool {
	return u.Role == RoleAdmin || u.IsAuthor
}
