// api/router.go
package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Annany2002/nebula-cms/api/handlers"
	"github.com/Annany2002/nebula-cms/api/middleware"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/form"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(metaDB *sql.DB, cfg *config.Config, compiler *form.Compiler) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(middleware.MetricsMiddleware())
	// After Logger/Recovery, before the handlers it wraps
	router.Use(middleware.ErrorHandler())

	authHandler := handlers.NewAuthHandler(metaDB, cfg)
	schemaHandler := handlers.NewSchemaHandler(compiler)
	recordHandler := handlers.NewRecordHandler(metaDB, cfg, compiler)
	uploadHandler := handlers.NewUploadHandler(cfg, compiler)
	agentHandler := handlers.NewAgentHandler(metaDB, compiler)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static(handlers.UploadsRoute, cfg.UploadDir)

	authRoutes := router.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		authRoutes.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute)))
	}
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
	}

	// --- Protected Routes ---
	apiRoutes := router.Group("/api/v1")
	apiRoutes.Use(middleware.AuthMiddleware(cfg))
	{
		apiRoutes.GET("/me", authHandler.Me)

		apiRoutes.GET("/config", schemaHandler.GetConfig)
		apiRoutes.GET("/tables", schemaHandler.ListTables)
		apiRoutes.GET("/tables/:table_id/form", schemaHandler.GetForm)

		apiRoutes.POST("/tables/:table_id/records", recordHandler.CreateRecord)
		apiRoutes.GET("/tables/:table_id/records", recordHandler.ListRecords)
		apiRoutes.GET("/tables/:table_id/records/:record_key", recordHandler.GetRecord)
		apiRoutes.PUT("/tables/:table_id/records/:record_key", recordHandler.UpdateRecord)
		apiRoutes.DELETE("/tables/:table_id/records/:record_key", recordHandler.DeleteRecord)

		apiRoutes.POST("/tables/:table_id/fields/:field/upload", uploadHandler.UploadImage)
		apiRoutes.POST("/preview/rich-text", handlers.PreviewRichText)

		apiRoutes.GET("/agents", agentHandler.ListAgents)
		apiRoutes.PUT("/agents", agentHandler.ReplaceAgents)
		apiRoutes.GET("/agents/:agent_id", agentHandler.GetAgent)
	}

	return router
}

// corsConfig allows the dashboard origins. No origins, or "*", opens the API
// to any origin without credentials.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
