package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/toolforge/toolforge/pkg/toolforge/auth"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
)

// Handler handles admin dashboard requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	SystemRole string `json:"system_role"`
	CreatedAt  string `json:"created_at"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	Active     *bool   `json:"active"`
	SystemRole *string `json:"system_role"`
}

// ProgramRevenue represents per-program revenue in the dashboard
type ProgramRevenue struct {
	Program     string  `json:"program"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Commission  float64 `json:"commission"`
}

// TopTool represents a top earner in the dashboard
type TopTool struct {
	ToolID     uint    `json:"tool_id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Clicks     int64   `json:"clicks"`
	Commission float64 `json:"commission"`
}

// StatsResponse represents the financial dashboard
type StatsResponse struct {
	TotalTools       int64            `json:"total_tools"`
	PublishedTools   int64            `json:"published_tools"`
	TotalUsers       int64            `json:"total_users"`
	TotalTags        int64            `json:"total_tags"`
	ActiveAPIKeys    int64            `json:"active_api_keys"`
	TotalClicks      int64            `json:"total_clicks"`
	TotalConversions int64            `json:"total_conversions"`
	TotalRevenue     float64          `json:"total_revenue"`
	TotalCommission  float64          `json:"total_commission"`
	ConversionRate   float64          `json:"conversion_rate"`
	EarningsPerClick float64          `json:"earnings_per_click"`
	ByProgram        []ProgramRevenue `json:"by_program"`
	TopTools         []TopTool        `json:"top_tools"`
}

// GetStats returns the financial dashboard (admin only)
// @Summary Dashboard statistics
// @Description Catalog, click, conversion and revenue totals with per-program and top-tool breakdowns
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /api/admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.Tool{}).Count(&stats.TotalTools)
	h.db.Model(&models.Tool{}).Where("status = ?", models.ToolStatusPublished).Count(&stats.PublishedTools)
	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Tag{}).Count(&stats.TotalTags)
	h.db.Model(&models.APIKey{}).Count(&stats.ActiveAPIKeys)

	h.db.Model(&models.ClickLog{}).Count(&stats.TotalClicks)
	h.db.Model(&models.Conversion{}).Count(&stats.TotalConversions)
	h.db.Model(&models.Conversion{}).Select("COALESCE(SUM(revenue), 0)").Scan(&stats.TotalRevenue)
	h.db.Model(&models.Conversion{}).Select("COALESCE(SUM(commission_amount), 0)").Scan(&stats.TotalCommission)

	if stats.TotalClicks > 0 {
		stats.ConversionRate = float64(stats.TotalConversions) / float64(stats.TotalClicks)
		stats.EarningsPerClick = stats.TotalRevenue / float64(stats.TotalClicks)
	}

	// Per-program breakdown from both ledgers
	var clickRows []struct {
		Program string
		Cnt     int64
	}
	h.db.Model(&models.ClickLog{}).
		Select("program, COUNT(*) as cnt").
		Group("program").
		Scan(&clickRows)

	var convRows []struct {
		Program    string
		Cnt        int64
		Revenue    float64
		Commission float64
	}
	h.db.Model(&models.Conversion{}).
		Select("program, COUNT(*) as cnt, COALESCE(SUM(revenue), 0) as revenue, COALESCE(SUM(commission_amount), 0) as commission").
		Group("program").
		Scan(&convRows)

	byProgram := make(map[string]*ProgramRevenue)
	for _, r := range clickRows {
		byProgram[r.Program] = &ProgramRevenue{Program: r.Program, Clicks: r.Cnt}
	}
	for _, r := range convRows {
		p, ok := byProgram[r.Program]
		if !ok {
			p = &ProgramRevenue{Program: r.Program}
			byProgram[r.Program] = p
		}
		p.Conversions = r.Cnt
		p.Revenue = r.Revenue
		p.Commission = r.Commission
	}
	stats.ByProgram = make([]ProgramRevenue, 0, len(byProgram))
	for _, p := range byProgram {
		stats.ByProgram = append(stats.ByProgram, *p)
	}

	// Top tools by earned commission
	var topRows []struct {
		ToolID     uint
		Cnt        int64
		Commission float64
	}
	h.db.Model(&models.Conversion{}).
		Select("tool_id, COUNT(*) as cnt, COALESCE(SUM(commission_amount), 0) as commission").
		Group("tool_id").
		Order("commission DESC").
		Limit(10).
		Scan(&topRows)

	stats.TopTools = make([]TopTool, 0, len(topRows))
	for _, r := range topRows {
		var tool models.Tool
		if err := h.db.First(&tool, r.ToolID).Error; err != nil {
			continue
		}
		var clicks int64
		h.db.Model(&models.ClickLog{}).Where("tool_id = ?", r.ToolID).Count(&clicks)
		stats.TopTools = append(stats.TopTools, TopTool{
			ToolID:     r.ToolID,
			Name:       tool.Name,
			Slug:       tool.Slug,
			Clicks:     clicks,
			Commission: r.Commission,
		})
	}

	c.JSON(http.StatusOK, stats)
}

func userToResponse(user models.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Active:     user.Active,
		SystemRole: string(user.SystemRole),
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ListUsers returns all users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	query := h.db.Order("created_at DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = userToResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

// UpdateUser updates a user's profile or role (admin only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.SystemRole != nil && *req.SystemRole != "admin" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.SystemRole != nil {
		if *req.SystemRole != "admin" && *req.SystemRole != "user" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system role"})
			return
		}
		updates["system_role"] = *req.SystemRole
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, id)
	c.JSON(http.StatusOK, userToResponse(user))
}

// DeleteUser removes a user and their API keys (admin only)
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
