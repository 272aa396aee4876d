package model

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null"`
	Description string
	DueDate     time.Time `gorm:"not null"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null"`
	Status      string    `gorm:"not null;default:'in-progress';check:status IN ('in-progress', 'completed')"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time

	Owner   User   `gorm:"foreignKey:OwnerID"`
	Members []User `gorm:"many2many:project_members"`
}

// Project statuses. "Ready for review" is derived (all tasks complete
// while still in progress) and never persisted.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)
