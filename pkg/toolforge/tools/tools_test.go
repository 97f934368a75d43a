package tools

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/api"))
	handler.RegisterAdminRoutes(r.Group("/api/admin"))
	return r, handler
}

func createTestTool(t *testing.T, db *gorm.DB, tool models.Tool) models.Tool {
	if tool.Slug == "" {
		tool.Slug = tool.Name
	}
	if tool.Status == "" {
		tool.Status = models.ToolStatusPublished
	}
	if err := db.Create(&tool).Error; err != nil {
		t.Fatalf("Failed to create test tool: %v", err)
	}
	return tool
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"ChatGPT":          "chatgpt",
		"Jasper AI":        "jasper-ai",
		"  GPT-4 Turbo!  ": "gpt-4-turbo",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListFiltersUnpublished(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "live", Category: "writing"})
	createTestTool(t, db, models.Tool{Name: "draft", Category: "writing", Status: models.ToolStatusDraft})
	createTestTool(t, db, models.Tool{Name: "gone", Category: "writing", Status: models.ToolStatusArchived})

	req, _ := http.NewRequest("GET", "/api/tools", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var tools []models.Tool
	if err := json.Unmarshal(resp.Body.Bytes(), &tools); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "live" {
		t.Errorf("Expected only the published tool, got %+v", tools)
	}
}

func TestListCategoryAndPricingFilters(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "writer", Category: "writing", Pricing: models.PricingFree})
	createTestTool(t, db, models.Tool{Name: "painter", Category: "image", Pricing: models.PricingPaid})

	req, _ := http.NewRequest("GET", "/api/tools?category=image&pricing=paid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var tools []models.Tool
	json.Unmarshal(resp.Body.Bytes(), &tools)
	if len(tools) != 1 || tools[0].Name != "painter" {
		t.Errorf("Expected filter to match only painter, got %+v", tools)
	}
}

func TestListSearch(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "CopyForge", Category: "writing", Description: "AI copywriting"})
	createTestTool(t, db, models.Tool{Name: "PixelGen", Category: "image", Description: "image generation"})

	req, _ := http.NewRequest("GET", "/api/tools?q=copywriting", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var tools []models.Tool
	json.Unmarshal(resp.Body.Bytes(), &tools)
	if len(tools) != 1 || tools[0].Name != "CopyForge" {
		t.Errorf("Expected search to match description, got %+v", tools)
	}
}

func TestGetBySlugIncrementsViews(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	tool := createTestTool(t, db, models.Tool{Name: "chatgpt", Category: "writing"})

	req, _ := http.NewRequest("GET", "/api/tools/chatgpt", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	// Increment happens off the request path
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var fresh models.Tool
		db.First(&fresh, tool.ID)
		if fresh.ViewCount == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Expected view count to reach 1")
}

func TestGetBySlugNotifiesObserver(t *testing.T) {
	db := setupTestDB(t)
	router, handler := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "chatgpt", Category: "writing"})

	var observed string
	handler.SetViewObserver(func(c *gin.Context, tool *models.Tool) {
		observed = tool.Slug
	})

	req, _ := http.NewRequest("GET", "/api/tools/chatgpt", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if observed != "chatgpt" {
		t.Errorf("Expected observer to see chatgpt, got %q", observed)
	}
}

func TestGetBySlugHidesDrafts(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "secret", Category: "writing", Status: models.ToolStatusDraft})

	req, _ := http.NewRequest("GET", "/api/tools/secret", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for draft tool, got %d", resp.Code)
	}
}

func TestCreateGeneratesSlugAndDraftStatus(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	body, _ := json.Marshal(CreateToolRequest{
		Name:     "Jasper AI",
		Category: "writing",
		TagNames: []string{"GPT", "copywriting"},
	})
	req, _ := http.NewRequest("POST", "/api/admin/tools", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var tool models.Tool
	if err := json.Unmarshal(resp.Body.Bytes(), &tool); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if tool.Slug != "jasper-ai" {
		t.Errorf("Expected generated slug jasper-ai, got %q", tool.Slug)
	}
	if tool.Status != models.ToolStatusDraft {
		t.Errorf("Expected new tools to start as drafts, got %s", tool.Status)
	}
	if len(tool.Tags) != 2 {
		t.Errorf("Expected 2 tags attached, got %+v", tool.Tags)
	}
}

func TestCreateRejectsReservedSlug(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	body, _ := json.Marshal(CreateToolRequest{Name: "Admin Tool", Slug: "admin", Category: "writing"})
	req, _ := http.NewRequest("POST", "/api/admin/tools", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for reserved slug, got %d", resp.Code)
	}
}

func TestUpdatePublishStampsPublishedAt(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	tool := createTestTool(t, db, models.Tool{Name: "draft-tool", Category: "writing", Status: models.ToolStatusDraft})

	body, _ := json.Marshal(map[string]string{"status": "published"})
	req, _ := http.NewRequest("PUT", "/api/admin/tools/"+itoa(tool.ID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var fresh models.Tool
	db.First(&fresh, tool.ID)
	if fresh.Status != models.ToolStatusPublished {
		t.Errorf("Expected published status, got %s", fresh.Status)
	}
	if fresh.PublishedAt == nil {
		t.Error("Expected PublishedAt to be stamped on first publish")
	}
}

func TestArchiveKeepsRow(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	tool := createTestTool(t, db, models.Tool{Name: "retiring", Category: "writing"})

	req, _ := http.NewRequest("DELETE", "/api/admin/tools/"+itoa(tool.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var fresh models.Tool
	if err := db.First(&fresh, tool.ID).Error; err != nil {
		t.Fatalf("Expected tool row to survive archiving: %v", err)
	}
	if fresh.Status != models.ToolStatusArchived {
		t.Errorf("Expected archived status, got %s", fresh.Status)
	}
}

func TestFeaturedListing(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTestTool(t, db, models.Tool{Name: "star", Category: "writing", Featured: true})
	createTestTool(t, db, models.Tool{Name: "plain", Category: "writing"})

	req, _ := http.NewRequest("GET", "/api/tools/featured", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var tools []models.Tool
	if err := json.Unmarshal(resp.Body.Bytes(), &tools); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "star" {
		t.Errorf("Expected only the featured tool, got %+v", tools)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
