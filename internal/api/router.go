package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	articles := NewArticleHandler(services, log)
	raw := NewRawArticleHandler(services, cfg, log)
	settings := NewSettingsHandler(services, log)
	jobs := NewJobHandler(services, log)
	categories := NewCategoryHandler(services, log)
	media := NewMediaHandler(services, log)
	public := NewPublicHandler(services, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services))

	// Uploaded images are served from the same prefix their references use
	router.Static("/storage", cfg.Storage.ImageRoot)

	// API v1
	v1 := router.Group("/v1")
	{
		rawArticles := v1.Group("/raw-articles")
		{
			rawArticles.POST("", raw.Create)
			rawArticles.POST("/import", raw.Import)
			rawArticles.GET("", raw.List)
		}

		drafts := v1.Group("/drafts")
		{
			drafts.POST("", articles.CreateDraft)
			drafts.POST("/from-source/:source_id", articles.CreateDraftFromSource)
			drafts.GET("", articles.ListDrafts)
			drafts.GET("/:id", articles.GetDraft)
			drafts.PUT("/:id", articles.UpdateDraft)
			drafts.POST("/:id/ai-rewrite", articles.RequestAIRewrite)
			drafts.POST("/:id/approve", articles.Approve)
			drafts.POST("/:id/reject", articles.Reject)
			drafts.DELETE("/:id", articles.DestroyDraft)
		}

		approved := v1.Group("/approved")
		{
			approved.GET("", articles.ListApproved)
			approved.GET("/:id", articles.GetApproved)
			approved.PUT("/:id", articles.UpdateApproved)
			approved.POST("/:id/publish", articles.Publish)
			approved.POST("/:id/unpublish", articles.Unpublish)
			approved.DELETE("/:id", articles.DestroyApproved)
		}

		ai := v1.Group("/settings/ai")
		{
			ai.GET("", settings.Get)
			ai.PUT("", settings.Save)
			ai.POST("/test", settings.TestConnection)
		}

		v1.POST("/scrape", jobs.StartScrape)
		v1.GET("/services/keyword/health", jobs.KeywordServiceHealth)

		rewrites := v1.Group("/keyword-rewrites")
		{
			rewrites.POST("", jobs.CreateRewrite)
			rewrites.POST("/batch", jobs.QueueRewrites)
			rewrites.GET("", jobs.ListRewrites)
			rewrites.GET("/:id", jobs.GetRewrite)
			rewrites.POST("/:id/retry", jobs.RetryRewrite)
		}
		v1.POST("/callbacks/keyword-rewrite", jobs.Callback)

		cats := v1.Group("/categories")
		{
			cats.POST("", categories.Create)
			cats.GET("", categories.List)
			cats.POST("/:id/subcategories", categories.AddSubcategories)
		}

		v1.POST("/images", media.Upload)
	}

	pub := router.Group("/public")
	{
		pub.GET("/articles", public.StreamArticles)
		pub.GET("/articles/:slug", public.GetArticle)
	}

	return router
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "magazine-cms",
	})
}

// metricsHandler returns row counts per collection
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := services.Public.GetCounts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count records"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"database":  counts,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetHeader(userIDHeader)).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
