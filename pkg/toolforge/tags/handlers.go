package tags

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ToolCount int    `json:"tool_count,omitempty"`
}

// SetTagsRequest represents the request to set tags on a tool
type SetTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// List returns all tags with published tool counts
// @Summary List tags
// @Description Get all tags ordered by how many published tools carry them
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Router /api/tags [get]
func (h *Handler) List(c *gin.Context) {
	type tagWithCount struct {
		ID        uint
		Name      string
		ToolCount int
	}

	var results []tagWithCount
	err := h.db.Table("tags").
		Select("tags.id, tags.name, COUNT(DISTINCT tools.id) as tool_count").
		Joins("INNER JOIN tool_tags ON tags.id = tool_tags.tag_id").
		Joins("INNER JOIN tools ON tool_tags.tool_id = tools.id AND tools.status = ? AND tools.deleted_at IS NULL", models.ToolStatusPublished).
		Where("tags.deleted_at IS NULL").
		Group("tags.id").
		Order("tool_count DESC").
		Find(&results).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	tags := make([]TagResponse, len(results))
	for i, r := range results {
		tags[i] = TagResponse{ID: r.ID, Name: r.Name, ToolCount: r.ToolCount}
	}

	c.JSON(http.StatusOK, tags)
}

// ToolsByTag returns the published tools carrying a tag
func (h *Handler) ToolsByTag(c *gin.Context) {
	name := strings.ToLower(c.Param("name"))

	var tag models.Tag
	if err := h.db.Where("name = ?", name).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var tools []models.Tool
	err := h.db.Preload("Tags").
		Joins("JOIN tool_tags ON tool_tags.tool_id = tools.id").
		Where("tool_tags.tag_id = ? AND tools.status = ?", tag.ID, models.ToolStatusPublished).
		Order("tools.rating DESC").
		Find(&tools).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tools"})
		return
	}

	c.JSON(http.StatusOK, tools)
}

// GetToolTags returns tags for a specific tool
func (h *Handler) GetToolTags(c *gin.Context) {
	var tool models.Tool
	if err := h.db.Preload("Tags").Where("slug = ?", c.Param("slug")).First(&tool).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	tags := make([]TagResponse, len(tool.Tags))
	for i, t := range tool.Tags {
		tags[i] = TagResponse{ID: t.ID, Name: t.Name}
	}

	c.JSON(http.StatusOK, tags)
}

// toolByID loads a tool by the :id route param, writing the error response
// on failure
func (h *Handler) toolByID(c *gin.Context) (*models.Tool, bool) {
	toolID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tool ID"})
		return nil, false
	}
	var tool models.Tool
	if err := h.db.First(&tool, toolID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return nil, false
	}
	return &tool, true
}

// SetToolTags sets the tags for a tool, replacing existing ones (admin)
func (h *Handler) SetToolTags(c *gin.Context) {
	tool, ok := h.toolByID(c)
	if !ok {
		return
	}

	var req SetTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tags []models.Tag
	for _, tagName := range req.Tags {
		tagName = strings.TrimSpace(strings.ToLower(tagName))
		if tagName == "" {
			continue
		}

		var tag models.Tag
		if err := h.db.Where("name = ?", tagName).First(&tag).Error; err != nil {
			tag = models.Tag{Name: tagName}
			if err := h.db.Create(&tag).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
				return
			}
		}
		tags = append(tags, tag)
	}

	if err := h.db.Model(tool).Association("Tags").Replace(tags); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tags"})
		return
	}

	tagResponses := make([]TagResponse, len(tags))
	for i, t := range tags {
		tagResponses[i] = TagResponse{ID: t.ID, Name: t.Name}
	}

	c.JSON(http.StatusOK, tagResponses)
}

// AddToolTag adds a single tag to a tool (admin)
func (h *Handler) AddToolTag(c *gin.Context) {
	tagName := strings.TrimSpace(strings.ToLower(c.Param("tag")))

	tool, ok := h.toolByID(c)
	if !ok {
		return
	}

	var tag models.Tag
	if err := h.db.Where("name = ?", tagName).First(&tag).Error; err != nil {
		tag = models.Tag{Name: tagName}
		if err := h.db.Create(&tag).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
			return
		}
	}

	if err := h.db.Model(tool).Association("Tags").Append(&tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add tag"})
		return
	}

	c.JSON(http.StatusOK, TagResponse{ID: tag.ID, Name: tag.Name})
}

// RemoveToolTag removes a tag from a tool (admin)
func (h *Handler) RemoveToolTag(c *gin.Context) {
	tool, ok := h.toolByID(c)
	if !ok {
		return
	}

	var tag models.Tag
	if err := h.db.Where("name = ?", strings.ToLower(c.Param("tag"))).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	if err := h.db.Model(tool).Association("Tags").Delete(&tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag removed"})
}

// RegisterRoutes registers the public tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.GET("/tags/:name/tools", h.ToolsByTag)
	rg.GET("/tools/:slug/tags", h.GetToolTags)
}

// RegisterAdminRoutes registers tag management routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/tools/:id/tags", h.SetToolTags)
	rg.POST("/tools/:id/tags/:tag", h.AddToolTag)
	rg.DELETE("/tools/:id/tags/:tag", h.RemoveToolTag)
}
