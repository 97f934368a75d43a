package affiliate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/gorm"
)

// Strategy selects how the resolver picks among competing links for a tool
type Strategy string

const (
	StrategyHighestCommission Strategy = "highest_commission"
	StrategyGeoBased          Strategy = "geo_based"
	StrategyPerformanceBased  Strategy = "performance_based"
	StrategyRoundRobin        Strategy = "round_robin"
)

// ResolvedLink is the outcome of link resolution: one decorated outbound URL
type ResolvedLink struct {
	URL        string         `json:"url"`
	Program    models.Program `json:"program"`
	TrackingID string         `json:"tracking_id"`
}

// ResolveRequest carries per-request context for strategy decisions
type ResolveRequest struct {
	Country   string // ISO country code, used by geo_based
	SessionID string // visitor session, used by round_robin
}

// Resolver picks one affiliate link per tool and produces trackable URLs.
// One Resolver is constructed at startup and shared by all handlers.
type Resolver struct {
	db       *gorm.DB
	rotation RotationStore
	metrics  *metricsCache
	client   *http.Client
}

// NewResolver creates a resolver. rotation may be nil, in which case the
// round_robin strategy degrades to highest_commission.
func NewResolver(db *gorm.DB, rotation RotationStore) *Resolver {
	return &Resolver{
		db:       db,
		rotation: rotation,
		metrics:  newMetricsCache(metricsCacheTTL),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetHTTPClient overrides the HTTP client used for link health checks
func (r *Resolver) SetHTTPClient(client *http.Client) {
	r.client = client
}

// OptimalLink selects one active affiliate link for the tool under the given
// strategy and returns a decorated, trackable URL. Returns nil (not an
// error) when the tool has no active links.
func (r *Resolver) OptimalLink(ctx context.Context, toolID uint, strategy Strategy, req ResolveRequest) (*ResolvedLink, error) {
	var links []models.AffiliateLink
	if err := r.db.Where("tool_id = ? AND active = ?", toolID, true).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	var chosen models.AffiliateLink
	switch strategy {
	case StrategyGeoBased:
		chosen = pickGeoBased(links, req.Country)
	case StrategyPerformanceBased:
		chosen = r.pickPerformanceBased(toolID, links)
	case StrategyRoundRobin:
		chosen = r.pickRoundRobin(ctx, req.SessionID, toolID, links)
	default:
		chosen = pickHighestCommission(links)
	}

	trackingID := NewTrackingID(chosen.Program, toolID)
	return &ResolvedLink{
		URL:        DecorateURL(chosen.URL, chosen.Program, trackingID),
		Program:    chosen.Program,
		TrackingID: trackingID,
	}, nil
}

// pickHighestCommission returns the link with the greatest effective
// commission rate. Ties keep the first link encountered.
func pickHighestCommission(links []models.AffiliateLink) models.AffiliateLink {
	best := links[0]
	for _, link := range links[1:] {
		if EffectiveRate(link) > EffectiveRate(best) {
			best = link
		}
	}
	return best
}

// pickGeoBased filters to links valid for the visitor's country (no
// restrictions, or the country listed) and applies highest_commission to the
// survivors. An empty filtered set falls back to the first unfiltered link.
func pickGeoBased(links []models.AffiliateLink, country string) models.AffiliateLink {
	var eligible []models.AffiliateLink
	for _, link := range links {
		if len(link.GeoRestrictions) == 0 {
			eligible = append(eligible, link)
			continue
		}
		for _, code := range link.GeoRestrictions {
			if code == country {
				eligible = append(eligible, link)
				break
			}
		}
	}
	if len(eligible) == 0 {
		return links[0]
	}
	return pickHighestCommission(eligible)
}

// pickPerformanceBased selects the link whose program has the highest EPC
// for this tool. Without performance data it falls back to
// highest_commission.
func (r *Resolver) pickPerformanceBased(toolID uint, links []models.AffiliateLink) models.AffiliateLink {
	metrics, err := r.Performance(toolID)
	if err != nil || len(metrics) == 0 {
		if err != nil {
			log.Printf("affiliate: performance lookup failed for tool %d: %v", toolID, err)
		}
		return pickHighestCommission(links)
	}

	epcByProgram := make(map[models.Program]float64, len(metrics))
	for _, m := range metrics {
		epcByProgram[m.Program] = m.EPC
	}

	best := links[0]
	bestEPC := epcByProgram[best.Program]
	for _, link := range links[1:] {
		if epc := epcByProgram[link.Program]; epc > bestEPC {
			best = link
			bestEPC = epc
		}
	}
	return best
}

// pickRoundRobin rotates through the tool's links per visitor session
func (r *Resolver) pickRoundRobin(ctx context.Context, sessionID string, toolID uint, links []models.AffiliateLink) models.AffiliateLink {
	if r.rotation == nil || sessionID == "" {
		return pickHighestCommission(links)
	}
	idx, err := r.rotation.Next(ctx, sessionID, toolID, len(links))
	if err != nil {
		log.Printf("affiliate: rotation store failed for tool %d: %v", toolID, err)
		return pickHighestCommission(links)
	}
	return links[idx]
}

// DecorateURL injects the program's tracking parameter and the standard UTM
// parameters into a raw affiliate URL. A URL that fails to parse is returned
// unchanged: no attribution beats a broken link. Re-decorating a URL
// overwrites parameters rather than duplicating them.
func DecorateURL(rawURL string, program models.Program, trackingID string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	if param, ok := trackingParams[program]; ok {
		q.Set(param, trackingID)
	}
	q.Set("utm_source", "toolforge")
	q.Set("utm_medium", "affiliate")
	q.Set("utm_campaign", string(program))
	u.RawQuery = q.Encode()

	return u.String()
}

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTrackingID generates a tracking ID of the form
// tf_<program>_<first 8 of tool id>_<base36 ms timestamp><5 random base36>.
// Uniqueness is probabilistic but ample for correlating conversions.
func NewTrackingID(program models.Program, toolID uint) string {
	toolPart := fmt.Sprintf("%08d", toolID)
	if len(toolPart) > 8 {
		toolPart = toolPart[:8]
	}

	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = base36Chars[rand.Intn(len(base36Chars))]
	}

	return fmt.Sprintf("tf_%s_%s_%s%s",
		program, toolPart,
		strconv.FormatInt(time.Now().UnixMilli(), 36),
		suffix)
}
