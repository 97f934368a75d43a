package recommend

import (
	"log"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// ConsentCookie marks a session that opted in to personalized
// recommendations. Without it no browsing history is recorded.
const ConsentCookie = "tf_consent"

// HasAnalyticsConsent reports whether the request carries an affirmative
// consent cookie.
func HasAnalyticsConsent(c *gin.Context) bool {
	v, err := c.Cookie(ConsentCookie)
	return err == nil && v == "granted"
}

// Tracker persists per-session browsing history used for personalized and
// collaborative recommendations.
type Tracker struct {
	db *gorm.DB
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// RecordView appends a tool view to the session's history, updating the
// MRU list and category/pricing preference counters.
func (t *Tracker) RecordView(sessionID string, tool *models.Tool) {
	if sessionID == "" || tool == nil {
		return
	}
	t.update(sessionID, func(h *models.BrowsingHistory) {
		h.ViewedTools = appendMRU(h.ViewedTools, tool.ID)
		h.Categories = append(h.Categories, tool.Category)
		h.PricingPrefs = append(h.PricingPrefs, string(tool.Pricing))
		h.LastViewedAt = time.Now()
	})
}

// RecordClick appends an affiliate click to the session's history.
func (t *Tracker) RecordClick(sessionID string, toolID uint) {
	if sessionID == "" || toolID == 0 {
		return
	}
	t.update(sessionID, func(h *models.BrowsingHistory) {
		h.ClickedTools = appendMRU(h.ClickedTools, toolID)
		h.LastViewedAt = time.Now()
	})
}

// Clear deletes all history rows for a session. Called when consent is
// withdrawn.
func (t *Tracker) Clear(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return t.db.Where("session_id = ?", sessionID).Delete(&models.BrowsingHistory{}).Error
}

// History loads the session's browsing history, or nil if none exists.
func (t *Tracker) History(sessionID string) *models.BrowsingHistory {
	if sessionID == "" {
		return nil
	}
	var h models.BrowsingHistory
	if err := t.db.Where("session_id = ?", sessionID).First(&h).Error; err != nil {
		return nil
	}
	return &h
}

func (t *Tracker) update(sessionID string, mutate func(*models.BrowsingHistory)) {
	var h models.BrowsingHistory
	err := t.db.Where("session_id = ?", sessionID).First(&h).Error
	if err == gorm.ErrRecordNotFound {
		h = models.BrowsingHistory{SessionID: sessionID}
	} else if err != nil {
		log.Printf("Failed to load browsing history for session %s: %v", sessionID, err)
		return
	}

	mutate(&h)

	if err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Save(&h).Error; err != nil {
		log.Printf("Failed to save browsing history for session %s: %v", sessionID, err)
	}
}

// appendMRU appends id to the list, deduplicating and keeping only the most
// recent HistoryMaxEntries entries.
func appendMRU(list []uint, id uint) []uint {
	out := make([]uint, 0, len(list)+1)
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	out = append(out, id)
	if len(out) > models.HistoryMaxEntries {
		out = out[len(out)-models.HistoryMaxEntries:]
	}
	return out
}

// ExtractUserPreferences ranks the raw preference occurrences by frequency,
// most frequent first. Ties break by first appearance.
func ExtractUserPreferences(raw []string) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := make([]string, 0)
	for i, v := range raw {
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})
	return order
}
