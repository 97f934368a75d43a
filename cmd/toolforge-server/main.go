package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/toolforge/toolforge/pkg/toolforge/admin"
	"github.com/toolforge/toolforge/pkg/toolforge/affiliate"
	"github.com/toolforge/toolforge/pkg/toolforge/apikeys"
	"github.com/toolforge/toolforge/pkg/toolforge/auth"
	"github.com/toolforge/toolforge/pkg/toolforge/database"
	"github.com/toolforge/toolforge/pkg/toolforge/geo"
	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"github.com/toolforge/toolforge/pkg/toolforge/recommend"
	"github.com/toolforge/toolforge/pkg/toolforge/tags"
	"github.com/toolforge/toolforge/pkg/toolforge/tools"
)

// @title ToolForge API
// @version 1.0
// @description AI tool directory with affiliate link attribution and recommendations.

// @contact.name ToolForge Support
// @contact.url https://github.com/toolforge/toolforge

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	dsn := os.Getenv("TOOLFORGE_DSN")
	if dsn == "" {
		dsn = "toolforge.db"
	}

	if err := database.Connect(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	// Rotation counters: redis when configured, in-process otherwise
	var rotation affiliate.RotationStore
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		rotation = affiliate.NewRedisRotation(rdb)
		log.Printf("Round-robin rotation backed by redis at %s", addr)
	} else {
		rotation = affiliate.NewMemoryRotation()
		log.Println("Round-robin rotation backed by process memory")
	}

	// GeoIP lookup for geo-based link selection
	var locator geo.Locator = geo.NoopLocator{}
	if path := os.Getenv("GEOIP_DB"); path != "" {
		maxmind, err := geo.Open(path)
		if err != nil {
			log.Printf("Warning: GeoIP database unavailable, geo selection degraded: %v", err)
		} else {
			defer maxmind.Close()
			locator = maxmind
		}
	}

	resolver := affiliate.NewResolver(db, rotation)
	tracker := recommend.NewTracker(db)
	engine := recommend.NewEngine(db, tracker, recommend.NewTrendSource(db))

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "toolforge",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(db)
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Public catalog browsing
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

		// Recommendations and consent
		recommendHandler := recommend.NewHandler(db, engine, tracker)
		recommendHandler.RegisterRoutes(api)

		// Conversion postbacks (accepts JWT or API key)
		affiliateHandler := affiliate.NewHandler(db, resolver, locator)
		affiliateHandler.SetClickObserver(func(c *gin.Context, sessionID string, toolID uint) {
			if recommend.HasAnalyticsConsent(c) {
				tracker.RecordClick(sessionID, toolID)
			}
		})
		affiliateHandler.RegisterPostbackRoutes(api.Group("", apikeys.CombinedAuthMiddleware(db)))

		// Admin routes (JWT only, admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())

		adminHandler := admin.NewHandler(db)
		adminHandler.RegisterRoutes(adminGroup)
		toolsHandler.RegisterAdminRoutes(adminGroup)
		tagsHandler.RegisterAdminRoutes(adminGroup)
		affiliateHandler.RegisterAdminRoutes(adminGroup)

		// Outbound redirect and link resolution (registered last to avoid
		// conflicts with the fixed /api/tools routes)
		affiliateHandler.RegisterPublicRoutes(r)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting ToolForge server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in the
// database.
func ensureAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@toolforge.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
		Active:       true,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin@toolforge.local (password: changeme)")
	return nil
}
