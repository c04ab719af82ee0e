package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"risk-review-system/internal/logger"
)

// CORSMiddleware возвращает middleware для обработки CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, PUT")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ZapLogger журнал запросов через zap
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("http request", fields...)
			return
		}
		log.Debug("http request", fields...)
	}
}

// SetupCommonEndpoints добавляет общие endpoints (health, metrics, events, stats) к роутеру
func SetupCommonEndpoints(router *gin.Engine, metrics http.Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	router.GET("/api/v1/events", func(c *gin.Context) {
		limit := 100
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
				limit = parsed
			}
		}
		if eventType := c.Query("type"); eventType != "" {
			c.JSON(http.StatusOK, gin.H{"events": logger.GetEventsByType(logger.EventType(eventType), limit)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": logger.GetEvents(limit)})
	})

	router.GET("/api/v1/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, logger.GetStats())
	})
}

// RegisterRoutes маршруты API v1
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	tx := api.Group("/transactions")
	{
		tx.POST("/evaluate", h.EvaluateTransaction)
		tx.POST("/process", h.ProcessTransaction)
		tx.POST("/backfill", h.Backfill)
		tx.GET("/generate", h.GenerateRandomTransaction)
		tx.GET("/:id/assessment", h.GetAssessment)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("", h.ListReviews)
		reviews.GET("/sla-breaches", h.ListSLABreaches)
		reviews.GET("/:id", h.GetReview)
		reviews.POST("/:id/assign", h.AssignReview)
		reviews.POST("/:id/auto-assign", h.AutoAssignReview)
		reviews.POST("/:id/approve", h.ApproveReview)
		reviews.POST("/:id/reject", h.RejectReview)
		reviews.POST("/:id/second-approval", h.SecondApproval)
		reviews.POST("/:id/comments", h.AddComment)
	}

	api.GET("/policy-configs", h.GetPolicyConfig)
	api.PATCH("/policy-configs", h.UpdatePolicyConfig)

	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.SaveUser)

	stats := api.Group("/stats")
	{
		stats.GET("/reviews", h.GetReviewStats)
		stats.POST("/reviews/rebuild", h.RebuildReviewStats)
		stats.GET("/decisions", h.GetDecisionCounts)
	}
}

// SetupRouter настраивает маршруты REST API
func SetupRouter(handlers *Handlers, metrics http.Handler, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), ZapLogger(log), CORSMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	RegisterRoutes(router.Group("/api/v1"), handlers)
	SetupCommonEndpoints(router, metrics)

	return router
}
