package recommend

import (
	"log"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// Personalized scoring weights
const (
	weightPrefCategory = 0.4
	weightPrefPricing  = 0.2
	weightRating       = 0.2
	weightReviews      = 0.1
	weightRecency      = 0.1
	weightFeatured     = 0.05
)

// Hybrid branch weights
const (
	hybridContentWeight  = 0.4
	hybridCollabWeight   = 0.4
	hybridPersonalWeight = 0.2
)

// Scored pairs a tool with its recommendation score.
type Scored struct {
	Tool  models.Tool `json:"tool"`
	Score float64     `json:"score"`
}

// Engine produces tool recommendations from the catalog, browsing history
// and click logs. All public methods degrade to an empty slice on error
// rather than surfacing failures to callers.
type Engine struct {
	db      *gorm.DB
	tracker *Tracker
	trends  TrendSource
}

func NewEngine(db *gorm.DB, tracker *Tracker, trends TrendSource) *Engine {
	return &Engine{db: db, tracker: tracker, trends: trends}
}

// SimilarTools ranks published tools by content similarity to the given
// tool. The tool itself is excluded, as are zero-score candidates.
func (e *Engine) SimilarTools(tool *models.Tool, limit int) []Scored {
	if tool == nil || limit <= 0 {
		return []Scored{}
	}

	candidates, err := e.publishedExcept(tool.ID)
	if err != nil {
		log.Printf("Failed to load candidates for similar tools: %v", err)
		return []Scored{}
	}

	scored := make([]Scored, 0, len(candidates))
	for i := range candidates {
		s := contentScore(tool, &candidates[i])
		if s > 0 {
			scored = append(scored, Scored{Tool: candidates[i], Score: s})
		}
	}
	sortScored(scored)
	return truncate(scored, limit)
}

// Personalized scores published tools against the session's extracted
// category and pricing preferences, boosted by rating, review volume,
// recency and featured flag. Tools the session already viewed or clicked
// are excluded. Sessions with no history get trending tools instead.
func (e *Engine) Personalized(sessionID string, limit int) []Scored {
	if limit <= 0 {
		return []Scored{}
	}

	history := e.tracker.History(sessionID)
	if history == nil || (len(history.ViewedTools) == 0 && len(history.ClickedTools) == 0) {
		return e.Trending(limit)
	}

	categories := ExtractUserPreferences(history.Categories)
	pricing := ExtractUserPreferences(history.PricingPrefs)

	var candidates []models.Tool
	err := e.db.Preload("Tags").
		Where("status = ?", models.ToolStatusPublished).
		Find(&candidates).Error
	if err != nil {
		log.Printf("Failed to load candidates for personalized recommendations: %v", err)
		return []Scored{}
	}

	now := time.Now()
	scored := make([]Scored, 0, len(candidates))
	for i := range candidates {
		t := &candidates[i]
		if history.HasSeen(t.ID) {
			continue
		}

		score := 0.0
		if contains(categories, t.Category) {
			score += weightPrefCategory
		}
		if contains(pricing, string(t.Pricing)) {
			score += weightPrefPricing
		}
		score += (t.Rating / 5.0) * weightRating
		// Social proof: one percent of the cap per review, saturating at 10 reviews
		score += min(float64(t.ReviewCount)/100.0, weightReviews)
		if t.PublishedAt != nil && now.Sub(*t.PublishedAt) < 30*24*time.Hour {
			score += weightRecency
		}
		if t.Featured {
			score += weightFeatured
		}

		if score > 0 {
			scored = append(scored, Scored{Tool: *t, Score: score})
		}
	}
	sortScored(scored)
	return truncate(scored, limit)
}

// Collaborative recommends tools clicked by other sessions that clicked the
// same tool. When no co-occurrence data exists it falls back to content
// similarity.
func (e *Engine) Collaborative(tool *models.Tool, limit int) []Scored {
	if tool == nil || limit <= 0 {
		return []Scored{}
	}

	type coRow struct {
		ToolID uint
		Cnt    int64
	}
	var rows []coRow
	err := e.db.Model(&models.ClickLog{}).
		Select("tool_id, COUNT(*) as cnt").
		Where("tool_id != ? AND session_id != '' AND session_id IN (?)",
			tool.ID,
			e.db.Model(&models.ClickLog{}).
				Select("session_id").
				Where("tool_id = ? AND session_id != ''", tool.ID),
		).
		Group("tool_id").
		Order("cnt DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		log.Printf("Collaborative query failed for tool %d: %v", tool.ID, err)
		return e.SimilarTools(tool, limit)
	}
	if len(rows) == 0 {
		return e.SimilarTools(tool, limit)
	}

	ids := make([]uint, len(rows))
	maxCnt := rows[0].Cnt
	for i, r := range rows {
		ids[i] = r.ToolID
	}

	var tools []models.Tool
	err = e.db.Preload("Tags").
		Where("id IN ? AND status = ?", ids, models.ToolStatusPublished).
		Find(&tools).Error
	if err != nil {
		log.Printf("Failed to load co-clicked tools: %v", err)
		return e.SimilarTools(tool, limit)
	}

	byID := make(map[uint]models.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	scored := make([]Scored, 0, len(rows))
	for _, r := range rows {
		t, ok := byID[r.ToolID]
		if !ok {
			continue
		}
		scored = append(scored, Scored{Tool: t, Score: float64(r.Cnt) / float64(maxCnt)})
	}
	if len(scored) == 0 {
		return e.SimilarTools(tool, limit)
	}
	return truncate(scored, limit)
}

// Trending returns the currently trending tools with rank-derived scores.
func (e *Engine) Trending(limit int) []Scored {
	if limit <= 0 {
		return []Scored{}
	}
	tools, err := e.trends.Trending(limit)
	if err != nil {
		log.Printf("Trending lookup failed: %v", err)
		return []Scored{}
	}
	return rankScores(tools, limit)
}

// RisingStars returns recently published, highly rated tools.
func (e *Engine) RisingStars(limit int) []Scored {
	if limit <= 0 {
		return []Scored{}
	}
	tools, err := e.trends.RisingStars(limit)
	if err != nil {
		log.Printf("Rising stars lookup failed: %v", err)
		return []Scored{}
	}
	return rankScores(tools, limit)
}

// Hybrid fans out to the content, collaborative and personalized branches
// concurrently and merges them with fixed weights. A failure in any branch
// degrades that branch to empty rather than failing the merge.
func (e *Engine) Hybrid(tool *models.Tool, sessionID string, limit int) []Scored {
	if limit <= 0 {
		return []Scored{}
	}

	var (
		wg       sync.WaitGroup
		content  []Scored
		collab   []Scored
		personal []Scored
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		content = e.SimilarTools(tool, limit)
	}()
	go func() {
		defer wg.Done()
		collab = e.Collaborative(tool, limit)
	}()
	go func() {
		defer wg.Done()
		personal = e.Personalized(sessionID, limit)
	}()
	wg.Wait()

	merged := make(map[uint]*Scored)
	merge := func(branch []Scored, weight float64) {
		for rank, s := range branch {
			contribution := weight * (1.0 - float64(rank)/float64(limit))
			if existing, ok := merged[s.Tool.ID]; ok {
				existing.Score += contribution
			} else {
				merged[s.Tool.ID] = &Scored{Tool: s.Tool, Score: contribution}
			}
		}
	}
	merge(content, hybridContentWeight)
	merge(collab, hybridCollabWeight)
	merge(personal, hybridPersonalWeight)

	// Never recommend the anchor tool back
	if tool != nil {
		delete(merged, tool.ID)
	}

	scored := make([]Scored, 0, len(merged))
	for _, s := range merged {
		scored = append(scored, *s)
	}
	sortScored(scored)
	return truncate(scored, limit)
}

// Alternatives suggests replacement tools in the same category, preferring
// candidates with the same pricing model before filling from the rest.
func (e *Engine) Alternatives(tool *models.Tool, limit int) []Scored {
	if tool == nil || limit <= 0 {
		return []Scored{}
	}

	var candidates []models.Tool
	err := e.db.Preload("Tags").
		Where("status = ? AND category = ? AND id != ?",
			models.ToolStatusPublished, tool.Category, tool.ID).
		Order("rating DESC, review_count DESC").
		Find(&candidates).Error
	if err != nil {
		log.Printf("Failed to load alternatives for tool %d: %v", tool.ID, err)
		return []Scored{}
	}

	samePricing := make([]Scored, 0, len(candidates))
	other := make([]Scored, 0, len(candidates))
	for i := range candidates {
		s := Scored{Tool: candidates[i], Score: contentScore(tool, &candidates[i])}
		if candidates[i].Pricing == tool.Pricing {
			samePricing = append(samePricing, s)
		} else {
			other = append(other, s)
		}
	}
	return truncate(append(samePricing, other...), limit)
}

func (e *Engine) publishedExcept(toolID uint) ([]models.Tool, error) {
	var tools []models.Tool
	err := e.db.Preload("Tags").
		Where("status = ? AND id != ?", models.ToolStatusPublished, toolID).
		Find(&tools).Error
	return tools, err
}

func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

func truncate(s []Scored, limit int) []Scored {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func rankScores(tools []models.Tool, limit int) []Scored {
	if len(tools) > limit {
		tools = tools[:limit]
	}
	scored := make([]Scored, len(tools))
	for i, t := range tools {
		scored[i] = Scored{Tool: t, Score: 1.0 - float64(i)/float64(limit)}
	}
	return scored
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
