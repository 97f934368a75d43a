package recommend

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

const (
	trendWindow     = 7 * 24 * time.Hour
	risingStarAge   = 30 * 24 * time.Hour
	risingStarScore = 4.0
)

// TrendSource produces trending and rising-star tool lists. Implementations
// return an error when they cannot produce a meaningful result, letting the
// caller fall back to a cheaper source.
type TrendSource interface {
	Trending(limit int) ([]models.Tool, error)
	RisingStars(limit int) ([]models.Tool, error)
}

// aggregateTrends ranks tools by recent click activity from the click logs.
type aggregateTrends struct {
	db *gorm.DB
}

func (s *aggregateTrends) Trending(limit int) ([]models.Tool, error) {
	since := time.Now().Add(-trendWindow)

	var ids []uint
	err := s.db.Model(&models.ClickLog{}).
		Select("tool_id").
		Where("created_at > ?", since).
		Group("tool_id").
		Order("COUNT(*) DESC").
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var tools []models.Tool
	err = s.db.Preload("Tags").
		Where("id IN ? AND status = ?", ids, models.ToolStatusPublished).
		Find(&tools).Error
	if err != nil {
		return nil, err
	}

	// Restore the click-count ordering lost by the IN query
	byID := make(map[uint]models.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	ordered := make([]models.Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

func (s *aggregateTrends) RisingStars(limit int) ([]models.Tool, error) {
	since := time.Now().Add(-risingStarAge)

	var tools []models.Tool
	err := s.db.Preload("Tags").
		Where("status = ? AND published_at > ? AND rating >= ?",
			models.ToolStatusPublished, since, risingStarScore).
		Order("click_count DESC, rating DESC").
		Limit(limit).
		Find(&tools).Error
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return tools, nil
}

// heuristicTrends approximates trends from catalog counters when no click
// data exists yet.
type heuristicTrends struct {
	db *gorm.DB
}

func (s *heuristicTrends) Trending(limit int) ([]models.Tool, error) {
	var tools []models.Tool
	err := s.db.Preload("Tags").
		Where("status = ?", models.ToolStatusPublished).
		Order("view_count DESC").
		Limit(limit).
		Find(&tools).Error
	return tools, err
}

func (s *heuristicTrends) RisingStars(limit int) ([]models.Tool, error) {
	since := time.Now().Add(-risingStarAge)

	var tools []models.Tool
	err := s.db.Preload("Tags").
		Where("status = ? AND published_at > ? AND rating >= ?",
			models.ToolStatusPublished, since, risingStarScore).
		Order("rating DESC, review_count DESC").
		Limit(limit).
		Find(&tools).Error
	return tools, err
}

// fallbackTrends tries the primary source and falls back to the secondary
// when the primary errors or comes up empty.
type fallbackTrends struct {
	primary   TrendSource
	secondary TrendSource
}

// NewTrendSource builds the default source: click-log aggregation with a
// catalog-counter fallback for cold starts.
func NewTrendSource(db *gorm.DB) TrendSource {
	return &fallbackTrends{
		primary:   &aggregateTrends{db: db},
		secondary: &heuristicTrends{db: db},
	}
}

func (s *fallbackTrends) Trending(limit int) ([]models.Tool, error) {
	tools, err := s.primary.Trending(limit)
	if err == nil && len(tools) > 0 {
		return tools, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		log.Printf("Primary trend source failed, falling back: %v", err)
	}
	return s.secondary.Trending(limit)
}

func (s *fallbackTrends) RisingStars(limit int) ([]models.Tool, error) {
	tools, err := s.primary.RisingStars(limit)
	if err == nil && len(tools) > 0 {
		return tools, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		log.Printf("Primary trend source failed, falling back: %v", err)
	}
	return s.secondary.RisingStars(limit)
}
