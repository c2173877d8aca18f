package routes

import (
	"net/http"
	"time"

	"medicose-chatbot-backend/config"
	"medicose-chatbot-backend/controllers"
	"medicose-chatbot-backend/database"
	"medicose-chatbot-backend/middleware"
	"medicose-chatbot-backend/models"
	"medicose-chatbot-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the wired services the routes serve.
type Dependencies struct {
	Config   *config.Config
	Chatbot  *services.ChatbotService
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	// Initialize controllers
	chatbotController := controllers.NewChatbotController(deps.Chatbot)
	wsController := controllers.NewWebSocketController(deps.Chatbot, cfg.Security.AllowedOrigins)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := database.HealthCheck(c.Request.Context(), cfg); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
		c.JSON(status, gin.H{
			"status":       http.StatusText(status),
			"timestamp":    time.Now(),
			"database":     cfg.Database.Type,
			"db_status":    dbStatus,
			"ai_enabled":   cfg.AIEnabled(),
			"session_type": cfg.Session.Store,
		})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(cfg.JWT.Secret))
	{
		chat := api.Group("/chat")
		{
			chat.POST("", chatbotController.HandleChat)
			chat.POST("/quick-action", chatbotController.HandleQuickAction)
			chat.POST("/ocr", chatbotController.HandleOcr)
			chat.GET("/session", chatbotController.GetSession)
			chat.DELETE("/session", chatbotController.ResetSession)
			chat.GET("/intents", chatbotController.GetSupportedIntents)
		}

		api.GET("/chat-analytics", middleware.RequireRole(models.RoleAdmin), chatbotController.GetChatAnalytics)

		// WebSocket for real-time chat
		api.GET("/ws", wsController.HandleWebSocket)
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})
}
