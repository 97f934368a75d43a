package affiliate

import (
	"sync"
	"time"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// metricsCacheTTL is how long per-tool performance aggregates stay cached.
// A conversion recorded inside the window will not affect EPC ranking until
// the window expires; this staleness is accepted.
const metricsCacheTTL = 5 * time.Minute

// ProgramMetrics aggregates click and conversion performance for one
// tool+program pair
type ProgramMetrics struct {
	Program          models.Program `json:"program"`
	Clicks           int64          `json:"clicks"`
	Conversions      int64          `json:"conversions"`
	Revenue          float64        `json:"revenue"`
	EPC              float64        `json:"epc"`
	ConversionRate   float64        `json:"conversion_rate"`
	AvgCommission    float64        `json:"avg_commission"`
	LastConversionAt *time.Time     `json:"last_conversion_at"`
}

type cacheEntry struct {
	metrics   []ProgramMetrics
	expiresAt time.Time
}

// metricsCache memoizes per-tool performance aggregates with a TTL. It is a
// memoization aid, not an eviction-managed cache: entries are replaced on
// refresh and expire lazily.
type metricsCache struct {
	mu      sync.Mutex
	entries map[uint]cacheEntry
	ttl     time.Duration
}

func newMetricsCache(ttl time.Duration) *metricsCache {
	return &metricsCache{entries: make(map[uint]cacheEntry), ttl: ttl}
}

func (c *metricsCache) get(toolID uint) ([]ProgramMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[toolID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.metrics, true
}

func (c *metricsCache) set(toolID uint, metrics []ProgramMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[toolID] = cacheEntry{metrics: metrics, expiresAt: time.Now().Add(c.ttl)}
}

// Performance returns per-program click/conversion aggregates for a tool,
// served from cache when fresh. Aggregation runs database-side.
func (r *Resolver) Performance(toolID uint) ([]ProgramMetrics, error) {
	if cached, ok := r.metrics.get(toolID); ok {
		return cached, nil
	}

	var clickRows []struct {
		Program models.Program
		Clicks  int64
	}
	err := r.db.Model(&models.ClickLog{}).
		Select("program, COUNT(*) AS clicks").
		Where("tool_id = ?", toolID).
		Group("program").
		Scan(&clickRows).Error
	if err != nil {
		return nil, err
	}

	var convRows []struct {
		Program        models.Program
		Conversions    int64
		Revenue        float64
		AvgCommission  float64
		LastConversion string
	}
	err = r.db.Model(&models.Conversion{}).
		Select("program, COUNT(*) AS conversions, SUM(revenue) AS revenue, AVG(commission_amount) AS avg_commission, MAX(created_at) AS last_conversion").
		Where("tool_id = ?", toolID).
		Group("program").
		Scan(&convRows).Error
	if err != nil {
		return nil, err
	}

	byProgram := make(map[models.Program]*ProgramMetrics)
	for _, row := range clickRows {
		byProgram[row.Program] = &ProgramMetrics{Program: row.Program, Clicks: row.Clicks}
	}
	for _, row := range convRows {
		m, ok := byProgram[row.Program]
		if !ok {
			m = &ProgramMetrics{Program: row.Program}
			byProgram[row.Program] = m
		}
		m.Conversions = row.Conversions
		m.Revenue = row.Revenue
		m.AvgCommission = row.AvgCommission
		if last, ok := parseDBTime(row.LastConversion); ok {
			m.LastConversionAt = &last
		}
	}

	metrics := make([]ProgramMetrics, 0, len(byProgram))
	for _, m := range byProgram {
		if m.Clicks > 0 {
			m.EPC = m.Revenue / float64(m.Clicks)
			m.ConversionRate = float64(m.Conversions) / float64(m.Clicks)
		}
		metrics = append(metrics, *m)
	}

	r.metrics.set(toolID, metrics)
	return metrics, nil
}

// dbTimeLayouts covers the textual timestamp forms the sqlite and postgres
// drivers hand back for aggregate expressions, which carry no column type.
var dbTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func parseDBTime(value string) (time.Time, bool) {
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
