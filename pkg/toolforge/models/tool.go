package models

import (
	"time"

	"gorm.io/gorm"
)

// ToolStatus represents a tool's publish state
type ToolStatus string

const (
	ToolStatusDraft     ToolStatus = "draft"
	ToolStatusPublished ToolStatus = "published"
	ToolStatusArchived  ToolStatus = "archived"
)

// PricingModel represents how a tool is monetized
type PricingModel string

const (
	PricingFree         PricingModel = "free"
	PricingFreemium     PricingModel = "freemium"
	PricingPaid         PricingModel = "paid"
	PricingSubscription PricingModel = "subscription"
)

// Tool represents a catalogued AI product.
// Tools are never hard-deleted; delete operations transition status to archived.
type Tool struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description string         `json:"description"`
	Website     string         `json:"website"`
	Category    string         `gorm:"index;not null" json:"category"`
	Subcategory string         `json:"subcategory"`
	Pricing     PricingModel   `gorm:"type:varchar(20);default:'free'" json:"pricing"`
	Rating      float64        `gorm:"default:0" json:"rating"`
	ReviewCount uint           `gorm:"default:0" json:"review_count"`
	ViewCount   uint           `gorm:"default:0" json:"view_count"`
	ClickCount  uint           `gorm:"default:0" json:"click_count"`
	Features    []string       `gorm:"serializer:json" json:"features"`
	Status      ToolStatus     `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	Featured    bool           `gorm:"default:false" json:"featured"`
	PublishedAt *time.Time     `json:"published_at"`

	// Relationships
	Tags           []Tag           `gorm:"many2many:tool_tags;" json:"tags,omitempty"`
	AffiliateLinks []AffiliateLink `gorm:"foreignKey:ToolID" json:"affiliate_links,omitempty"`
}

// TagNames returns the names of the tool's tags as a plain string slice
func (t *Tool) TagNames() []string {
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Name
	}
	return names
}
