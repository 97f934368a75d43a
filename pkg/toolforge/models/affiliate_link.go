package models

import (
	"time"

	"gorm.io/gorm"
)

// Program identifies an affiliate network or direct-deal integration
type Program string

const (
	ProgramAmazon       Program = "amazon"
	ProgramShareASale   Program = "shareasale"
	ProgramImpact       Program = "impact"
	ProgramCJ           Program = "cj"
	ProgramRakuten      Program = "rakuten"
	ProgramAwin         Program = "awin"
	ProgramPartnerStack Program = "partnerstack"
	ProgramRewardful    Program = "rewardful"
	ProgramDirect       Program = "direct"
	ProgramCustom       Program = "custom"
)

// AllPrograms lists every known affiliate program
var AllPrograms = []Program{
	ProgramAmazon, ProgramShareASale, ProgramImpact, ProgramCJ,
	ProgramRakuten, ProgramAwin, ProgramPartnerStack, ProgramRewardful,
	ProgramDirect, ProgramCustom,
}

// Valid reports whether p is a known program
func (p Program) Valid() bool {
	for _, known := range AllPrograms {
		if p == known {
			return true
		}
	}
	return false
}

// LinkHealth represents the result of the last health check on a link
type LinkHealth string

const (
	HealthActive  LinkHealth = "active"
	HealthBroken  LinkHealth = "broken"
	HealthExpired LinkHealth = "expired"
)

// AffiliateLink is a candidate outbound URL for a tool under a specific program.
// A tool may carry zero or more links; resolution tolerates zero by returning nil.
type AffiliateLink struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	ToolID          uint           `gorm:"not null;index" json:"tool_id"`
	Program         Program        `gorm:"type:varchar(20);not null" json:"program"`
	URL             string         `gorm:"not null" json:"url"`
	CommissionRate  *float64       `json:"commission_rate"` // nil means use the program default
	GeoRestrictions []string       `gorm:"serializer:json" json:"geo_restrictions"`
	Priority        int            `gorm:"default:0" json:"priority"`
	Active          bool           `gorm:"default:true" json:"active"`
	Health          LinkHealth     `gorm:"type:varchar(20);default:'active'" json:"health"`
	LastCheckedAt   *time.Time     `json:"last_checked_at"`

	// Relationships
	Tool Tool `gorm:"foreignKey:ToolID" json:"tool,omitempty"`
}
