package model

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title       string     `gorm:"not null"`
	Description string
	DueDate     time.Time  `gorm:"not null"`
	Completed   bool       `gorm:"not null;default:false"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time

	Project  Project `gorm:"foreignKey:ProjectID"`
	Assignee User    `gorm:"foreignKey:AssigneeID"`
	Creator  User    `gorm:"foreignKey:CreatedBy"`
}
