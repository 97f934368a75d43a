package affiliate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/gorm"
)

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, NewResolver(db, NewMemoryRotation()), nil)
	handler.RegisterAdminRoutes(r.Group("/api/admin"))
	handler.RegisterPostbackRoutes(r.Group("/api"))
	handler.RegisterPublicRoutes(r)
	return r
}

func TestRedirectDecoratesAndRecords(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "chatgpt")
	createTestLink(t, db, tool.ID, models.ProgramPartnerStack, nil)

	req, _ := http.NewRequest("GET", "/go/chatgpt", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d: %s", resp.Code, resp.Body.String())
	}

	location := resp.Header().Get("Location")
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("Location does not parse: %v", err)
	}
	if u.Query().Get("utm_source") != "toolforge" {
		t.Errorf("Expected decorated outbound URL, got %s", location)
	}
	if !strings.HasPrefix(u.Query().Get("sid"), "tf_partnerstack_") {
		t.Errorf("Expected tracking parameter, got %s", location)
	}

	var count int64
	db.Model(&models.ClickLog{}).Where("tool_id = ?", tool.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 click log, got %d", count)
	}
}

func TestRedirectSurvivesClickLogFailure(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "chatgpt")
	createTestLink(t, db, tool.ID, models.ProgramPartnerStack, nil)

	// A broken click log store must never break the outbound redirect
	if err := db.Migrator().DropTable(&models.ClickLog{}); err != nil {
		t.Fatalf("Failed to drop click log table: %v", err)
	}

	req, _ := http.NewRequest("GET", "/go/chatgpt", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302 despite tracking failure, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Location") == "" {
		t.Error("Expected outbound Location header")
	}
}

func TestRedirectNoLinks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestTool(t, db, "lonely")

	req, _ := http.NewRequest("GET", "/go/lonely", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for tool without links, got %d", resp.Code)
	}
}

func TestRedirectUnpublishedTool(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	tool := models.Tool{Name: "Draft", Slug: "draft", Category: "writing", Status: models.ToolStatusDraft}
	db.Create(&tool)
	createTestLink(t, db, tool.ID, models.ProgramDirect, nil)

	req, _ := http.NewRequest("GET", "/go/draft", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unpublished tool, got %d", resp.Code)
	}
}

func TestRedirectSetsSessionCookie(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "claude")
	createTestLink(t, db, tool.ID, models.ProgramDirect, nil)

	req, _ := http.NewRequest("GET", "/go/claude", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	found := false
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == SessionCookie && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("Expected session cookie to be set on first visit")
	}
}

func TestResolveLinkEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "jasper")
	createTestLink(t, db, tool.ID, models.ProgramPartnerStack, nil)

	req, _ := http.NewRequest("GET", "/api/tools/jasper/link", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var resolved ResolvedLink
	json.Unmarshal(resp.Body.Bytes(), &resolved)
	if resolved.Program != models.ProgramPartnerStack || resolved.TrackingID == "" {
		t.Errorf("Unexpected resolved link: %+v", resolved)
	}
}

func TestConversionPostback(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "copy-ai")

	resolver := NewResolver(db, nil)
	resolver.TrackClick(tool.ID, models.ProgramImpact, "tf_impact_1", ClickRecord{})

	body, _ := json.Marshal(ConversionRequest{TrackingID: "tf_impact_1", Revenue: 80, CommissionRate: 0.12})
	req, _ := http.NewRequest("POST", "/api/postback/conversion", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var conv models.Conversion
	if err := db.Where("tracking_id = ?", "tf_impact_1").First(&conv).Error; err != nil {
		t.Fatalf("Expected conversion row: %v", err)
	}
	if conv.CommissionAmount != 80*0.12 {
		t.Errorf("Expected commission %v, got %v", 80*0.12, conv.CommissionAmount)
	}
}

func TestCreateAndListLinks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "midjourney")

	body, _ := json.Marshal(CreateLinkRequest{
		Program: models.ProgramAwin,
		URL:     "https://awin.example.com/offer",
	})
	req, _ := http.NewRequest("POST", "/api/admin/tools/1/links", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	req, _ = http.NewRequest("GET", "/api/admin/tools/1/links", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var links []models.AffiliateLink
	json.Unmarshal(resp.Body.Bytes(), &links)
	if len(links) != 1 || links[0].ToolID != tool.ID {
		t.Errorf("Expected 1 link for tool, got %+v", links)
	}
}

func TestCreateLinkUnknownProgram(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestTool(t, db, "runway")

	body, _ := json.Marshal(map[string]string{
		"program": "clickbank",
		"url":     "https://example.com",
	})
	req, _ := http.NewRequest("POST", "/api/admin/tools/1/links", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestBulkImportEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestTool(t, db, "leonardo")

	body, _ := json.Marshal(BulkImportRequest{Links: []ImportEntry{
		{Program: models.ProgramAmazon, URL: "https://amazon.com/dp/1"},
		{Program: models.ProgramCJ, URL: "https://cj.example.com/2"},
		{Program: models.ProgramDirect, URL: "https://leonardo.ai"},
		{Program: models.ProgramDirect, URL: "::::"},
	}})
	req, _ := http.NewRequest("POST", "/api/admin/tools/1/links/import", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result ImportResult
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Success || result.Imported != 3 || result.Failed != 1 {
		t.Errorf("Unexpected import result: %+v", result)
	}
}

func TestUpdateLinkDeactivates(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tool := createTestTool(t, db, "perplexity")
	link := createTestLink(t, db, tool.ID, models.ProgramDirect, nil)

	inactive := false
	body, _ := json.Marshal(UpdateLinkRequest{Active: &inactive})
	req, _ := http.NewRequest("PUT", "/api/admin/links/1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var reloaded models.AffiliateLink
	db.First(&reloaded, link.ID)
	if reloaded.Active {
		t.Error("Expected link to be deactivated")
	}
}
