package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email          string    `gorm:"uniqueIndex;not null"`
	HashedPassword string    `gorm:"not null" json:"-"`
	Name           string    `gorm:"not null"`
	Avatar         string
	Timezone       string
	WorkStyle      string
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}
