package tools

import (
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// ViewObserver is notified after a public tool page fetch. The
// recommendation engine registers one to feed browsing history.
type ViewObserver func(c *gin.Context, tool *models.Tool)

// Handler handles tool catalog requests
type Handler struct {
	db       *gorm.DB
	observer ViewObserver
}

// NewHandler creates a new tools handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// SetViewObserver registers a callback invoked after each tool page view
func (h *Handler) SetViewObserver(obs ViewObserver) {
	h.observer = obs
}

// CreateToolRequest represents the request to create a tool
type CreateToolRequest struct {
	Name        string              `json:"name" binding:"required"`
	Slug        string              `json:"slug" binding:"omitempty,min=1,max=80"`
	Description string              `json:"description"`
	Website     string              `json:"website" binding:"omitempty,url"`
	Category    string              `json:"category" binding:"required"`
	Subcategory string              `json:"subcategory"`
	Pricing     models.PricingModel `json:"pricing"`
	Features    []string            `json:"features"`
	TagNames    []string            `json:"tags"`
}

// UpdateToolRequest represents the request to update a tool
type UpdateToolRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Website     string              `json:"website" binding:"omitempty,url"`
	Category    string              `json:"category"`
	Subcategory string              `json:"subcategory"`
	Pricing     models.PricingModel `json:"pricing"`
	Rating      *float64            `json:"rating"`
	ReviewCount *uint               `json:"review_count"`
	Features    []string            `json:"features"`
	Featured    *bool               `json:"featured"`
	Status      models.ToolStatus   `json:"status"`
	TagNames    []string            `json:"tags"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// validateSlug checks if a slug is valid and available
func (h *Handler) validateSlug(slug string, excludeID uint) error {
	if !slugRegex.MatchString(slug) {
		return &ValidationError{"Slug must contain only lowercase letters, numbers, and hyphens"}
	}

	reserved := []string{"api", "admin", "go", "health", "swagger", "featured", "auth"}
	for _, r := range reserved {
		if strings.EqualFold(slug, r) {
			return &ValidationError{"This slug is reserved"}
		}
	}

	var existing models.Tool
	query := h.db.Unscoped().Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.First(&existing).Error; err == nil {
		return &ValidationError{"This slug is already taken"}
	}

	return nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL slug from a tool name
func slugify(name string) string {
	s := strings.ToLower(name)
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// generateSlug derives a unique slug from the tool name, suffixing a
// counter on collision
func (h *Handler) generateSlug(name string) string {
	base := slugify(name)
	if base == "" {
		base = "tool"
	}

	slug := base
	for attempts := 2; attempts < 100; attempts++ {
		if err := h.validateSlug(slug, 0); err == nil {
			return slug
		}
		slug = base + "-" + strconv.Itoa(attempts)
	}
	return slug
}

// attachTags resolves tag names to Tag rows, creating missing ones, and
// replaces the tool's tag association
func (h *Handler) attachTags(tool *models.Tool, names []string) error {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		var tag models.Tag
		if err := h.db.Where("name = ?", name).FirstOrCreate(&tag, models.Tag{Name: name}).Error; err != nil {
			return err
		}
		tags = append(tags, tag)
	}
	return h.db.Model(tool).Association("Tags").Replace(tags)
}

// List returns published tools with optional filters
// @Summary List tools
// @Description Get published tools with category, pricing, tag and search filters
// @Tags tools
// @Produce json
// @Param category query string false "Filter by category"
// @Param pricing query string false "Filter by pricing model"
// @Param tag query string false "Filter by tag name"
// @Param q query string false "Search query (searches name, description)"
// @Param limit query int false "Max results (default 50, max 100)"
// @Param offset query int false "Offset for pagination"
// @Success 200 {array} models.Tool
// @Router /api/tools [get]
func (h *Handler) List(c *gin.Context) {
	query := h.db.Preload("Tags").
		Where("status = ?", models.ToolStatusPublished).
		Order("featured DESC, rating DESC, review_count DESC")

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if pricing := c.Query("pricing"); pricing != "" {
		query = query.Where("pricing = ?", pricing)
	}
	if q := c.Query("q"); q != "" {
		searchTerm := "%" + q + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", searchTerm, searchTerm)
	}
	if tag := c.Query("tag"); tag != "" {
		query = query.Joins("JOIN tool_tags ON tool_tags.tool_id = tools.id").
			Joins("JOIN tags ON tags.id = tool_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	query = query.Limit(limit)

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	query = query.Offset(offset)

	var tools []models.Tool
	if err := query.Find(&tools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tools"})
		return
	}

	c.JSON(http.StatusOK, tools)
}

// Featured returns the featured published tools
func (h *Handler) Featured(c *gin.Context) {
	var tools []models.Tool
	err := h.db.Preload("Tags").
		Where("status = ? AND featured = ?", models.ToolStatusPublished, true).
		Order("rating DESC, review_count DESC").
		Find(&tools).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tools"})
		return
	}

	c.JSON(http.StatusOK, tools)
}

// GetBySlug returns a published tool by its slug and counts the view
// @Summary Get a tool by slug
// @Description Get tool details by slug; increments the view counter
// @Tags tools
// @Produce json
// @Param slug path string true "Tool slug"
// @Success 200 {object} models.Tool
// @Failure 404 {object} map[string]string "Tool not found"
// @Router /api/tools/{slug} [get]
func (h *Handler) GetBySlug(c *gin.Context) {
	slug := c.Param("slug")

	var tool models.Tool
	err := h.db.Preload("Tags").Preload("AffiliateLinks", "active = ?", true).
		Where("slug = ? AND status = ?", slug, models.ToolStatusPublished).
		First(&tool).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	// Count the view without delaying the response
	go func(id uint) {
		if err := h.db.Model(&models.Tool{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			log.Printf("Failed to increment view count for tool %d: %v", id, err)
		}
	}(tool.ID)

	if h.observer != nil {
		h.observer(c, &tool)
	}

	c.JSON(http.StatusOK, tool)
}

// Create creates a new tool in draft status (admin)
// @Summary Create a tool
// @Description Create a new catalog entry; tools start as drafts
// @Tags tools
// @Accept json
// @Produce json
// @Param request body CreateToolRequest true "Tool details"
// @Success 201 {object} models.Tool
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /api/admin/tools [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = h.generateSlug(req.Name)
	} else if err := h.validateSlug(slug, 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pricing := req.Pricing
	if pricing == "" {
		pricing = models.PricingFree
	}

	tool := models.Tool{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Website:     req.Website,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Pricing:     pricing,
		Features:    req.Features,
		Status:      models.ToolStatusDraft,
	}

	if err := h.db.Create(&tool).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tool"})
		return
	}

	if len(req.TagNames) > 0 {
		if err := h.attachTags(&tool, req.TagNames); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to attach tags"})
			return
		}
	}

	h.db.Preload("Tags").First(&tool, tool.ID)
	c.JSON(http.StatusCreated, tool)
}

// Update updates a tool (admin). Transitioning to published stamps
// PublishedAt on first publish.
func (h *Handler) Update(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	var tool models.Tool
	if err := h.db.First(&tool, toolID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	var req UpdateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		tool.Name = req.Name
	}
	if req.Description != "" {
		tool.Description = req.Description
	}
	if req.Website != "" {
		tool.Website = req.Website
	}
	if req.Category != "" {
		tool.Category = req.Category
	}
	if req.Subcategory != "" {
		tool.Subcategory = req.Subcategory
	}
	if req.Pricing != "" {
		tool.Pricing = req.Pricing
	}
	if req.Rating != nil {
		tool.Rating = *req.Rating
	}
	if req.ReviewCount != nil {
		tool.ReviewCount = *req.ReviewCount
	}
	if req.Features != nil {
		tool.Features = req.Features
	}
	if req.Featured != nil {
		tool.Featured = *req.Featured
	}
	if req.Status != "" {
		if req.Status == models.ToolStatusPublished && tool.PublishedAt == nil {
			now := time.Now()
			tool.PublishedAt = &now
		}
		tool.Status = req.Status
	}

	if err := h.db.Save(&tool).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tool"})
		return
	}

	if req.TagNames != nil {
		if err := h.attachTags(&tool, req.TagNames); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to attach tags"})
			return
		}
	}

	h.db.Preload("Tags").First(&tool, tool.ID)
	c.JSON(http.StatusOK, tool)
}

// Archive retires a tool from the catalog (admin). Tools are never hard
// deleted; click logs and conversions keep referencing them.
// @Summary Archive a tool
// @Description Transition a tool to archived status
// @Tags tools
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} map[string]string "Tool archived"
// @Failure 404 {object} map[string]string "Tool not found"
// @Security BearerAuth
// @Router /api/admin/tools/{id} [delete]
func (h *Handler) Archive(c *gin.Context) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return
	}

	var tool models.Tool
	if err := h.db.First(&tool, toolID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	if err := h.db.Model(&tool).Update("status", models.ToolStatusArchived).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive tool"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tool archived"})
}

// ListAll returns tools in any status for the admin dashboard
func (h *Handler) ListAll(c *gin.Context) {
	query := h.db.Preload("Tags").Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tools []models.Tool
	if err := query.Find(&tools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tools"})
		return
	}

	c.JSON(http.StatusOK, tools)
}

// RegisterRoutes registers the public catalog routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tools", h.List)
	rg.GET("/tools/featured", h.Featured)
	rg.GET("/tools/:slug", h.GetBySlug)
}

// RegisterAdminRoutes registers catalog management routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/tools", h.ListAll)
	rg.POST("/tools", h.Create)
	rg.PUT("/tools/:id", h.Update)
	rg.DELETE("/tools/:id", h.Archive)
}
