package models

import "time"

// HistoryMaxEntries caps the viewed/clicked MRU lists in a browsing history
const HistoryMaxEntries = 20

// BrowsingHistory accumulates a visitor's viewed and clicked tools per
// session. Rows exist only for sessions that granted analytics consent and
// are deleted when consent is withdrawn.
type BrowsingHistory struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SessionID    string    `gorm:"uniqueIndex;not null" json:"session_id"`
	ViewedTools  []uint    `gorm:"serializer:json" json:"viewed_tools"`
	ClickedTools []uint    `gorm:"serializer:json" json:"clicked_tools"`
	Categories   []string  `gorm:"serializer:json" json:"categories"`
	PricingPrefs []string  `gorm:"serializer:json" json:"pricing_prefs"`
	LastViewedAt time.Time `json:"last_viewed_at"`
}

// HasSeen reports whether the history already contains the tool in either
// the viewed or clicked list
func (h *BrowsingHistory) HasSeen(toolID uint) bool {
	for _, id := range h.ViewedTools {
		if id == toolID {
			return true
		}
	}
	for _, id := range h.ClickedTools {
		if id == toolID {
			return true
		}
	}
	return false
}
