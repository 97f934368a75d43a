package integration

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/toolforge/toolforge/pkg/toolforge/admin"
	"github.com/toolforge/toolforge/pkg/toolforge/affiliate"
	"github.com/toolforge/toolforge/pkg/toolforge/apikeys"
	"github.com/toolforge/toolforge/pkg/toolforge/auth"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"github.com/toolforge/toolforge/pkg/toolforge/recommend"
	"github.com/toolforge/toolforge/pkg/toolforge/tags"
	"github.com/toolforge/toolforge/pkg/toolforge/tools"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupFullServer creates a Gin engine with all routes registered.
// This mirrors the setup in cmd/toolforge-server/main.go.
func setupFullServer(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	resolver := affiliate.NewResolver(db, affiliate.NewMemoryRotation())
	tracker := recommend.NewTracker(db)
	engine := recommend.NewEngine(db, tracker, recommend.NewTrendSource(db))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "toolforge",
			})
		})

		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		apiKeysHandler := apikeys.NewHandler(db)
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		toolsHandler := tools.NewHandler(db)
		toolsHandler.SetViewObserver(func(c *gin.Context, tool *models.Tool) {
			if !recommend.HasAnalyticsConsent(c) {
				return
			}
			if sid, err := c.Cookie(affiliate.SessionCookie); err == nil && sid != "" {
				tracker.RecordView(sid, tool)
			}
		})
		toolsHandler.RegisterRoutes(api)

		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(api)

		recommendHandler := recommend.NewHandler(db, engine, tracker)
		recommendHandler.RegisterRoutes(api)

		affiliateHandler := affiliate.NewHandler(db, resolver, nil)
		affiliateHandler.SetClickObserver(func(c *gin.Context, sessionID string, toolID uint) {
			if recommend.HasAnalyticsConsent(c) {
				tracker.RecordClick(sessionID, toolID)
			}
		})
		affiliateHandler.RegisterPostbackRoutes(api.Group("", apikeys.CombinedAuthMiddleware(db)))

		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())

		adminHandler := admin.NewHandler(db)
		adminHandler.RegisterRoutes(adminGroup)
		toolsHandler.RegisterAdminRoutes(adminGroup)
		tagsHandler.RegisterAdminRoutes(adminGroup)
		affiliateHandler.RegisterAdminRoutes(adminGroup)

		affiliateHandler.RegisterPublicRoutes(r)
	}

	return r
}

// TestServerStartup verifies that all routes can be registered without
// conflicts. This test would fail if route parameters clash (like :id vs
// :slug at the same position).
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(db)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestHealthEndpoint verifies the health endpoint responds correctly
func TestHealthEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	req, _ := http.NewRequest("GET", "/health", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestAPIHealthEndpoint verifies the API health endpoint responds correctly
func TestAPIHealthEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	req, _ := http.NewRequest("GET", "/api/health", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return
// 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/admin/stats"},
		{"GET", "/api/admin/users"},
		{"POST", "/api/admin/tools"},
		{"GET", "/api/api-keys"},
		{"POST", "/api/postback/conversion"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/tools", http.StatusOK},
		{"GET", "/api/tags", http.StatusOK},
		{"GET", "/api/recommendations/trending", http.StatusOK},
		{"POST", "/api/auth/register", http.StatusBadRequest}, // Bad request (no body), but not 401
		{"POST", "/api/auth/login", http.StatusBadRequest},    // Bad request (no body), but not 401
		{"GET", "/go/nonexistent-slug", http.StatusNotFound},  // 404 for missing tool, but not 401
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestRedirectFeedsRecommendations verifies the click observer wiring: a
// consenting session's redirect shows up in personalized recommendations
// as an exclusion.
func TestRedirectFeedsRecommendations(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	tool := models.Tool{
		Name: "chatgpt", Slug: "chatgpt", Category: "writing",
		Status: models.ToolStatusPublished,
	}
	if err := db.Create(&tool).Error; err != nil {
		t.Fatalf("Failed to create tool: %v", err)
	}
	link := models.AffiliateLink{
		ToolID: tool.ID, Program: models.ProgramDirect,
		URL: "https://chatgpt.example.com", Active: true, Health: models.HealthActive,
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	req, _ := http.NewRequest("GET", "/go/chatgpt", nil)
	req.AddCookie(&http.Cookie{Name: affiliate.SessionCookie, Value: "sess1"})
	req.AddCookie(&http.Cookie{Name: recommend.ConsentCookie, Value: "granted"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d: %s", resp.Code, resp.Body.String())
	}

	var history models.BrowsingHistory
	if err := db.Where("session_id = ?", "sess1").First(&history).Error; err != nil {
		t.Fatalf("Expected browsing history row after consented click: %v", err)
	}
	if !history.HasSeen(tool.ID) {
		t.Errorf("Expected clicked tool in history, got %+v", history)
	}
}

// TestRedirectWithoutConsentLeavesNoHistory verifies the consent gate
func TestRedirectWithoutConsentLeavesNoHistory(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	tool := models.Tool{
		Name: "chatgpt", Slug: "chatgpt", Category: "writing",
		Status: models.ToolStatusPublished,
	}
	db.Create(&tool)
	db.Create(&models.AffiliateLink{
		ToolID: tool.ID, Program: models.ProgramDirect,
		URL: "https://chatgpt.example.com", Active: true, Health: models.HealthActive,
	})

	req, _ := http.NewRequest("GET", "/go/chatgpt", nil)
	req.AddCookie(&http.Cookie{Name: affiliate.SessionCookie, Value: "sess1"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", resp.Code)
	}

	var count int64
	db.Model(&models.BrowsingHistory{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no browsing history without consent, got %d rows", count)
	}
}
