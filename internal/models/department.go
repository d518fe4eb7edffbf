package models

import (
	"time"
)

type Unit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Departments []Department `gorm:"foreignKey:UnitID" json:"departments,omitempty"`
}

func (Unit) TableName() string {
	return "units"
}

type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	UnitID    uint      `gorm:"not null;index" json:"unit_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Unit *Unit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (Department) TableName() string {
	return "departments"
}
