package recommend

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

const (
	defaultLimit = 10
	maxLimit     = 50

	// sessionCookie matches the cookie set by the affiliate redirect;
	// the two packages share the visitor session without importing each other
	sessionCookie = "tf_session"
)

// Handler exposes the recommendation engine over HTTP
type Handler struct {
	db      *gorm.DB
	engine  *Engine
	tracker *Tracker
}

// NewHandler creates a new recommendation handler
func NewHandler(db *gorm.DB, engine *Engine, tracker *Tracker) *Handler {
	return &Handler{db: db, engine: engine, tracker: tracker}
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (h *Handler) toolBySlug(c *gin.Context) (*models.Tool, bool) {
	var tool models.Tool
	err := h.db.Preload("Tags").
		Where("slug = ? AND status = ?", c.Param("slug"), models.ToolStatusPublished).
		First(&tool).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return nil, false
	}
	return &tool, true
}

// Similar returns tools ranked by content similarity to the given tool
// @Summary Similar tools
// @Description Tools ranked by category, pricing, feature and tag overlap
// @Tags recommendations
// @Produce json
// @Param slug path string true "Tool slug"
// @Param limit query int false "Max results" default(10)
// @Success 200 {array} Scored
// @Failure 404 {object} map[string]string "Tool not found"
// @Router /api/tools/{slug}/similar [get]
func (h *Handler) Similar(c *gin.Context) {
	tool, ok := h.toolBySlug(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.SimilarTools(tool, limitParam(c)))
}

// Alternatives returns replacement suggestions in the same category
func (h *Handler) Alternatives(c *gin.Context) {
	tool, ok := h.toolBySlug(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.Alternatives(tool, limitParam(c)))
}

// Collaborative returns "sessions that clicked this also clicked" results
func (h *Handler) Collaborative(c *gin.Context) {
	tool, ok := h.toolBySlug(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.Collaborative(tool, limitParam(c)))
}

// Personalized returns recommendations for the visitor's session history.
// Sessions without consent or history get trending tools.
func (h *Handler) Personalized(c *gin.Context) {
	sid, _ := c.Cookie(sessionCookie)
	c.JSON(http.StatusOK, h.engine.Personalized(sid, limitParam(c)))
}

// Trending returns the currently trending tools
func (h *Handler) Trending(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Trending(limitParam(c)))
}

// RisingStars returns recently published, highly rated tools
func (h *Handler) RisingStars(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.RisingStars(limitParam(c)))
}

// Hybrid merges content, personalized and trending recommendations
func (h *Handler) Hybrid(c *gin.Context) {
	tool, ok := h.toolBySlug(c)
	if !ok {
		return
	}
	sid, _ := c.Cookie(sessionCookie)
	c.JSON(http.StatusOK, h.engine.Hybrid(tool, sid, limitParam(c)))
}

// ConsentRequest represents an analytics consent update
type ConsentRequest struct {
	Granted bool `json:"granted"`
}

// Consent sets or withdraws analytics consent. Withdrawing deletes the
// session's browsing history.
// @Summary Update analytics consent
// @Description Grant or withdraw consent for browsing history tracking
// @Tags recommendations
// @Accept json
// @Produce json
// @Param request body ConsentRequest true "Consent state"
// @Success 200 {object} map[string]string
// @Router /api/consent [post]
func (h *Handler) Consent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Granted {
		c.SetCookie(ConsentCookie, "granted", 60*60*24*365, "/", "", false, false)
		c.JSON(http.StatusOK, gin.H{"message": "Consent granted"})
		return
	}

	c.SetCookie(ConsentCookie, "", -1, "/", "", false, false)
	if sid, err := c.Cookie(sessionCookie); err == nil && sid != "" {
		if err := h.tracker.Clear(sid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Consent withdrawn"})
}

// RegisterRoutes registers the public recommendation endpoints
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tools/:slug/similar", h.Similar)
	rg.GET("/tools/:slug/alternatives", h.Alternatives)
	rg.GET("/tools/:slug/also-clicked", h.Collaborative)
	rg.GET("/tools/:slug/recommendations", h.Hybrid)
	rg.GET("/recommendations", h.Personalized)
	rg.GET("/recommendations/trending", h.Trending)
	rg.GET("/recommendations/rising", h.RisingStars)
	rg.POST("/consent", h.Consent)
}
