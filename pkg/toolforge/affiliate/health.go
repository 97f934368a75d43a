package affiliate

import (
	"log"
	"time"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// HealthReport summarizes a health sweep over a tool's links.
// Expired is always zero: the sweep distinguishes only reachable from
// unreachable, and the expired state is reserved for network-specific
// signals that are not checked here.
type HealthReport struct {
	Healthy int `json:"healthy"`
	Broken  int `json:"broken"`
	Expired int `json:"expired"`
}

// CheckHealth issues a HEAD request for every link of the tool and updates
// each link's health status: 2xx marks active, anything else broken.
func (r *Resolver) CheckHealth(toolID uint) (HealthReport, error) {
	var links []models.AffiliateLink
	if err := r.db.Where("tool_id = ?", toolID).Find(&links).Error; err != nil {
		return HealthReport{}, err
	}

	var report HealthReport
	now := time.Now()
	for _, link := range links {
		health := models.HealthBroken
		if r.headOK(link.URL) {
			health = models.HealthActive
			report.Healthy++
		} else {
			report.Broken++
		}

		err := r.db.Model(&models.AffiliateLink{}).Where("id = ?", link.ID).
			Updates(map[string]interface{}{
				"health":          health,
				"last_checked_at": now,
			}).Error
		if err != nil {
			log.Printf("affiliate: failed to update health for link %d: %v", link.ID, err)
		}
	}

	return report, nil
}

// headOK reports whether a HEAD request to the URL returns a 2xx status
func (r *Resolver) headOK(rawURL string) bool {
	resp, err := r.client.Head(rawURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
