package models

import "time"

// ClickLog is an immutable record of a single affiliate redirect.
// Rows are append-only; conversions read them back by tracking ID to
// recover the originating tool and program.
type ClickLog struct {
	ID         uint              `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	ToolID     uint              `gorm:"not null;index" json:"tool_id"`
	Program    Program           `gorm:"type:varchar(20);not null" json:"program"`
	TrackingID string            `gorm:"uniqueIndex;not null" json:"tracking_id"`
	SessionID  string            `gorm:"index" json:"session_id"`
	Country    string            `gorm:"type:varchar(2)" json:"country"`
	Referrer   string            `json:"referrer"`
	Metadata   map[string]string `gorm:"serializer:json" json:"metadata"`
}

// Conversion is an append-only record of realized revenue, keyed back to
// the originating click by tracking ID.
type Conversion struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	TrackingID       string    `gorm:"not null;index" json:"tracking_id"`
	ToolID           uint      `gorm:"not null;index" json:"tool_id"`
	Program          Program   `gorm:"type:varchar(20);not null" json:"program"`
	Revenue          float64   `json:"revenue"`
	CommissionRate   float64   `json:"commission_rate"`
	CommissionAmount float64   `json:"commission_amount"`
}
