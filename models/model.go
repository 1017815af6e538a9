package models

import (
	"time"

	"gorm.io/gorm"
)

// Model is gorm.Model with snake_case JSON keys, matching Design and
// Activity responses.
type Model struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
