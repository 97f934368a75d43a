package affiliate

import (
	"log"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/toolforge/toolforge/pkg/toolforge/geo"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/gorm"
)

// SessionCookie is the cookie carrying the visitor session ID
const SessionCookie = "tf_session"

// ClickObserver is notified after a successful affiliate redirect. The
// recommendation engine registers one to feed browsing history; the resolver
// itself never calls into recommendations. The request context is passed
// through so observers can honor consent cookies.
type ClickObserver func(c *gin.Context, sessionID string, toolID uint)

// Handler handles affiliate redirect, link management, and postback requests
type Handler struct {
	db       *gorm.DB
	resolver *Resolver
	locator  geo.Locator
	observer ClickObserver
}

// NewHandler creates a new affiliate handler
func NewHandler(db *gorm.DB, resolver *Resolver, locator geo.Locator) *Handler {
	if locator == nil {
		locator = geo.NoopLocator{}
	}
	return &Handler{db: db, resolver: resolver, locator: locator}
}

// SetClickObserver registers a callback invoked after each tracked click
func (h *Handler) SetClickObserver(obs ClickObserver) {
	h.observer = obs
}

// CreateLinkRequest represents the request to create an affiliate link
type CreateLinkRequest struct {
	Program         models.Program `json:"program" binding:"required"`
	URL             string         `json:"url" binding:"required,url"`
	CommissionRate  *float64       `json:"commission_rate"`
	GeoRestrictions []string       `json:"geo_restrictions"`
	Priority        int            `json:"priority"`
}

// UpdateLinkRequest represents the request to update an affiliate link
type UpdateLinkRequest struct {
	URL             string         `json:"url" binding:"omitempty,url"`
	Program         models.Program `json:"program"`
	CommissionRate  *float64       `json:"commission_rate"`
	GeoRestrictions []string       `json:"geo_restrictions"`
	Priority        *int           `json:"priority"`
	Active          *bool          `json:"active"`
}

// BulkImportRequest represents a bulk link import request
type BulkImportRequest struct {
	Links []ImportEntry `json:"links" binding:"required"`
}

// ConversionRequest represents an affiliate network conversion postback
type ConversionRequest struct {
	TrackingID     string  `json:"tracking_id" binding:"required"`
	Revenue        float64 `json:"revenue" binding:"required"`
	CommissionRate float64 `json:"commission_rate"`
}

// sessionID returns the visitor session from the cookie, creating one when
// absent
func sessionID(c *gin.Context) string {
	if sid, err := c.Cookie(SessionCookie); err == nil && sid != "" {
		return sid
	}
	sid := randomSessionID()
	c.SetCookie(SessionCookie, sid, 60*60*24*365, "/", "", false, true)
	return sid
}

const sessionCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSessionID() string {
	b := make([]byte, 24)
	for i := range b {
		b[i] = sessionCharset[rand.Intn(len(sessionCharset))]
	}
	return string(b)
}

// Redirect resolves the best affiliate link for a tool and 302s to it.
// A tool with no active links yields 404; the catalog page treats that as
// "no visit button", a normal state.
// @Summary Affiliate redirect
// @Description Resolve an affiliate link for a tool and redirect to it
// @Tags affiliate
// @Param slug path string true "Tool slug"
// @Param strategy query string false "Selection strategy" Enums(highest_commission, geo_based, performance_based, round_robin)
// @Param country query string false "ISO country override for geo_based"
// @Success 302
// @Failure 404 {object} map[string]string "Tool or link not found"
// @Router /go/{slug} [get]
func (h *Handler) Redirect(c *gin.Context) {
	slug := c.Param("slug")

	var tool models.Tool
	if err := h.db.Where("slug = ? AND status = ?", slug, models.ToolStatusPublished).First(&tool).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	strategy := Strategy(c.DefaultQuery("strategy", string(StrategyHighestCommission)))
	country := c.Query("country")
	if country == "" {
		country = h.locator.Country(c.ClientIP())
	}
	sid := sessionID(c)

	resolved, err := h.resolver.OptimalLink(c.Request.Context(), tool.ID, strategy, ResolveRequest{
		Country:   country,
		SessionID: sid,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve link"})
		return
	}
	if resolved == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No affiliate link available"})
		return
	}

	// Record the click before redirecting so the tracking ID is always
	// resolvable by a later conversion postback
	if err := h.resolver.TrackClick(tool.ID, resolved.Program, resolved.TrackingID, ClickRecord{
		SessionID: sid,
		Country:   country,
		Referrer:  c.Request.Referer(),
	}); err != nil {
		log.Printf("Failed to record click for tool %d: %v", tool.ID, err)
	}

	if h.observer != nil {
		h.observer(c, sid, tool.ID)
	}

	c.Redirect(http.StatusFound, resolved.URL)
}

// ResolveLink returns the resolved link as JSON instead of redirecting,
// for clients that render the outbound URL themselves
func (h *Handler) ResolveLink(c *gin.Context) {
	slug := c.Param("slug")

	var tool models.Tool
	if err := h.db.Where("slug = ? AND status = ?", slug, models.ToolStatusPublished).First(&tool).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	strategy := Strategy(c.DefaultQuery("strategy", string(StrategyHighestCommission)))
	country := c.Query("country")
	if country == "" {
		country = h.locator.Country(c.ClientIP())
	}

	resolved, err := h.resolver.OptimalLink(c.Request.Context(), tool.ID, strategy, ResolveRequest{
		Country:   country,
		SessionID: sessionID(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve link"})
		return
	}
	if resolved == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No affiliate link available"})
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// ListLinks returns all affiliate links for a tool (admin)
func (h *Handler) ListLinks(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	var links []models.AffiliateLink
	if err := h.db.Where("tool_id = ?", toolID).Order("priority DESC, created_at ASC").Find(&links).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch links"})
		return
	}

	c.JSON(http.StatusOK, links)
}

// CreateLink adds a single affiliate link to a tool (admin)
func (h *Handler) CreateLink(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Program.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown affiliate program"})
		return
	}

	var tool models.Tool
	if err := h.db.First(&tool, toolID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	link := models.AffiliateLink{
		ToolID:          uint(toolID),
		Program:         req.Program,
		URL:             req.URL,
		CommissionRate:  req.CommissionRate,
		GeoRestrictions: req.GeoRestrictions,
		Priority:        req.Priority,
		Active:          true,
		Health:          models.HealthActive,
	}
	if err := h.db.Create(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create link"})
		return
	}

	c.JSON(http.StatusCreated, link)
}

// UpdateLink updates an affiliate link (admin)
func (h *Handler) UpdateLink(c *gin.Context) {
	linkID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return
	}

	var link models.AffiliateLink
	if err := h.db.First(&link, linkID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.URL != "" {
		link.URL = req.URL
	}
	if req.Program != "" {
		if !req.Program.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown affiliate program"})
			return
		}
		link.Program = req.Program
	}
	if req.CommissionRate != nil {
		link.CommissionRate = req.CommissionRate
	}
	if req.GeoRestrictions != nil {
		link.GeoRestrictions = req.GeoRestrictions
	}
	if req.Priority != nil {
		link.Priority = *req.Priority
	}
	if req.Active != nil {
		link.Active = *req.Active
	}

	if err := h.db.Save(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}

	c.JSON(http.StatusOK, link)
}

// DeleteLink removes an affiliate link (admin, explicit action)
func (h *Handler) DeleteLink(c *gin.Context) {
	linkID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return
	}

	var link models.AffiliateLink
	if err := h.db.First(&link, linkID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	if err := h.db.Delete(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// BulkImport imports affiliate links in bulk (admin)
// @Summary Bulk import affiliate links
// @Description Import a batch of affiliate links for a tool; bad entries are counted, not fatal
// @Tags affiliate
// @Accept json
// @Produce json
// @Param id path int true "Tool ID"
// @Param request body BulkImportRequest true "Links to import"
// @Success 200 {object} ImportResult
// @Security BearerAuth
// @Router /admin/tools/{id}/links/import [post]
func (h *Handler) BulkImport(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	var req BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.resolver.BulkImport(uint(toolID), req.Links))
}

// HealthCheck sweeps a tool's links with HEAD requests (admin)
func (h *Handler) HealthCheck(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	report, err := h.resolver.CheckHealth(uint(toolID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Health check failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Performance returns per-program performance metrics for a tool (admin)
func (h *Handler) Performance(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	metrics, err := h.resolver.Performance(uint(toolID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch performance metrics"})
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// Conversion handles an affiliate network conversion postback.
// Unknown tracking IDs are acknowledged and dropped so networks do not retry
// forever.
func (h *Handler) Conversion(c *gin.Context) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.resolver.RecordConversion(req.TrackingID, req.Revenue, req.CommissionRate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record conversion"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversion recorded"})
}

// RegisterPublicRoutes registers the outbound redirect on the root router.
// This should be called AFTER all other routes to avoid conflicts.
func (h *Handler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/go/:slug", h.Redirect)
	r.GET("/api/tools/:slug/link", h.ResolveLink)
}

// RegisterAdminRoutes registers link management routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/tools/:id/links", h.ListLinks)
	rg.POST("/tools/:id/links", h.CreateLink)
	rg.POST("/tools/:id/links/import", h.BulkImport)
	rg.POST("/tools/:id/links/health-check", h.HealthCheck)
	rg.GET("/tools/:id/performance", h.Performance)
	rg.PUT("/links/:id", h.UpdateLink)
	rg.DELETE("/links/:id", h.DeleteLink)
}

// RegisterPostbackRoutes registers the conversion postback endpoint,
// protected by API-key auth in main
func (h *Handler) RegisterPostbackRoutes(rg *gin.RouterGroup) {
	rg.POST("/postback/conversion", h.Conversion)
}
