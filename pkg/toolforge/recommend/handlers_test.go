package recommend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/gorm"
)

func setupTestRouter(db *gorm.DB) (*gin.Engine, *Tracker) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tracker := NewTracker(db)
	engine := NewEngine(db, tracker, NewTrendSource(db))
	handler := NewHandler(db, engine, tracker)
	handler.RegisterRoutes(r.Group("/api"))
	return r, tracker
}

func TestSimilarEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTool(t, db, models.Tool{Name: "jasper", Category: "writing", Pricing: models.PricingPaid})
	createTool(t, db, models.Tool{Name: "copyai", Category: "writing", Pricing: models.PricingPaid})

	req, _ := http.NewRequest("GET", "/api/tools/jasper/similar", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var results []Scored
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(results) != 1 || results[0].Tool.Slug != "copyai" {
		t.Errorf("Expected copyai as the only similar tool, got %+v", results)
	}
}

func TestSimilarEndpointUnknownTool(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/api/tools/nope/similar", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestTrendingEndpointRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	for i := 0; i < 5; i++ {
		createTool(t, db, models.Tool{Name: "tool" + string(rune('a'+i)), Category: "writing", ViewCount: uint(100 - i)})
	}

	req, _ := http.NewRequest("GET", "/api/recommendations/trending?limit=2", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var results []Scored
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestPersonalizedEndpointUsesSessionCookie(t *testing.T) {
	db := setupTestDB(t)
	router, tracker := setupTestRouter(db)

	viewed := createTool(t, db, models.Tool{Name: "seen", Category: "writing", Pricing: models.PricingFree})
	createTool(t, db, models.Tool{Name: "next", Category: "writing", Pricing: models.PricingFree})
	tracker.RecordView("sess1", &viewed)

	req, _ := http.NewRequest("GET", "/api/recommendations", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess1"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var results []Scored
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(results) != 1 || results[0].Tool.Slug != "next" {
		t.Errorf("Expected the unseen tool only, got %+v", results)
	}
}

func TestConsentGrantSetsCookie(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	body, _ := json.Marshal(ConsentRequest{Granted: true})
	req, _ := http.NewRequest("POST", "/api/consent", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	found := false
	for _, c := range resp.Result().Cookies() {
		if c.Name == ConsentCookie && c.Value == "granted" {
			found = true
		}
	}
	if !found {
		t.Error("Expected consent cookie to be set")
	}
}

func TestConsentWithdrawalClearsHistory(t *testing.T) {
	db := setupTestDB(t)
	router, tracker := setupTestRouter(db)

	tool := createTool(t, db, models.Tool{Name: "seen", Category: "writing"})
	tracker.RecordView("sess1", &tool)

	body, _ := json.Marshal(ConsentRequest{Granted: false})
	req, _ := http.NewRequest("POST", "/api/consent", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess1"})
	req.AddCookie(&http.Cookie{Name: ConsentCookie, Value: "granted"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if tracker.History("sess1") != nil {
		t.Error("Expected browsing history to be deleted on withdrawal")
	}
	for _, c := range resp.Result().Cookies() {
		if c.Name == ConsentCookie && c.Value != "" && c.MaxAge >= 0 {
			t.Error("Expected consent cookie to be expired")
		}
	}
}

func TestHybridEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	createTool(t, db, models.Tool{Name: "anchor", Category: "writing", Pricing: models.PricingFree})
	createTool(t, db, models.Tool{Name: "sibling", Category: "writing", Pricing: models.PricingFree, ViewCount: 10})

	req, _ := http.NewRequest("GET", "/api/tools/anchor/recommendations", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "sibling") {
		t.Errorf("Expected sibling in hybrid results, got %s", resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), `"slug":"anchor"`) {
		t.Error("Hybrid results should not include the anchor tool")
	}
}
