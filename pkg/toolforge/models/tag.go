package models

import (
	"time"

	"gorm.io/gorm"
)

// Tag represents a tag that can be applied to tools
type Tag struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`

	// Relationships
	Tools []Tool `gorm:"many2many:tool_tags;" json:"tools,omitempty"`
}
