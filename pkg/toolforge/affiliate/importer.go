package affiliate

import (
	"net/url"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// ImportEntry is one candidate link in a bulk import
type ImportEntry struct {
	Program        models.Program `json:"program"`
	URL            string         `json:"url"`
	CommissionRate *float64       `json:"commission_rate"`
	Priority       int            `json:"priority"`
}

// ImportResult reports the outcome of a bulk import. Partial success is the
// expected outcome: Success is true only when nothing failed.
type ImportResult struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Failed   int  `json:"failed"`
}

// BulkImport inserts each entry independently; a bad entry is counted and
// skipped, never aborting the batch.
func (r *Resolver) BulkImport(toolID uint, entries []ImportEntry) ImportResult {
	var result ImportResult

	for _, entry := range entries {
		if !entry.Program.Valid() {
			result.Failed++
			continue
		}
		if u, err := url.ParseRequestURI(entry.URL); err != nil || u.Host == "" {
			result.Failed++
			continue
		}

		link := models.AffiliateLink{
			ToolID:         toolID,
			Program:        entry.Program,
			URL:            entry.URL,
			CommissionRate: entry.CommissionRate,
			Priority:       entry.Priority,
			Active:         true,
			Health:         models.HealthActive,
		}
		if err := r.db.Create(&link).Error; err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	result.Success = result.Failed == 0
	return result
}
