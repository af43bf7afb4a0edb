// internal/api/api.go
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/shelfwise/internal/api/handlers"
	"github.com/andresuchdata/shelfwise/internal/api/middleware"
	"github.com/andresuchdata/shelfwise/internal/realtime"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	PredictionService *service.PredictionService
	AlertService      *service.AlertService
	Broker            realtime.Broker
	// Ping reports backing store health; nil means always healthy
	Ping func(ctx context.Context) error
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.StoreHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthHandler(services))

	apiGroup := router.Group("/api/v1")
	apiGroup.Use(middleware.Tenant())

	if services != nil {
		if services.PredictionService != nil {
			predictionHandler := handlers.NewPredictionHandler(services.PredictionService)
			predictionGroup := apiGroup.Group("/predictions")
			{
				predictionGroup.GET("", predictionHandler.GetAllPredictions)
				predictionGroup.POST("/batch", predictionHandler.GetBatchPredictions)
				predictionGroup.POST("/batch/recompute", predictionHandler.BatchRecompute)
				predictionGroup.POST("/initialize", predictionHandler.InitializeAll)
				predictionGroup.GET("/:productId", predictionHandler.GetPredictiveAnalytics)
				predictionGroup.POST("/:productId/recompute", predictionHandler.Recompute)
				predictionGroup.POST("/:productId/sales", predictionHandler.RecordSale)
				predictionGroup.DELETE("/:productId", predictionHandler.DeletePrediction)
			}

			insightsGroup := apiGroup.Group("/insights")
			{
				insightsGroup.GET("/quick", predictionHandler.GetQuickInsights)
				insightsGroup.GET("/dashboard", predictionHandler.GetDashboard)
				insightsGroup.GET("/categories/:category", predictionHandler.GetCategoryInsights)
			}

			apiGroup.DELETE("/cache", predictionHandler.FlushCache)
		}

		if services.AlertService != nil {
			alertHandler := handlers.NewAlertHandler(services.AlertService)
			alertGroup := apiGroup.Group("/alerts")
			{
				alertGroup.GET("", alertHandler.GetAlerts)
				alertGroup.GET("/settings", alertHandler.GetSettings)
				alertGroup.PUT("/settings", alertHandler.UpdateSettings)
				alertGroup.PUT("/categories/:category/thresholds", alertHandler.UpdateCategoryThresholds)
				alertGroup.PUT("/products/:productId/thresholds", alertHandler.UpdateProductThresholds)
			}
			apiGroup.GET("/notifications", alertHandler.ListNotifications)
		}

		if services.Broker != nil {
			streamHandler := handlers.NewStreamHandler(services.Broker)
			streamGroup := apiGroup.Group("/stream")
			{
				streamGroup.GET("/products/:productId", streamHandler.StreamProduct)
				streamGroup.GET("/dashboard", streamHandler.StreamDashboard)
				streamGroup.GET("/alerts", streamHandler.StreamAlerts)
			}
		}
	}

	return router
}

func healthHandler(services *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if services != nil && services.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := services.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
