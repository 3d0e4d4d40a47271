package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/config"
	"github.com/avik-b/pulseboard/internal/db"
	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/service"
	"github.com/avik-b/pulseboard/internal/ws"
)

// Router wires every handler under /api with the auth middleware applied to
// everything except registration, login, refresh, the health probes and the
// socket endpoint (which authenticates during its own handshake).
func Router(
	cfg *config.Config,
	database *db.DB,
	users *service.UserService,
	analytics *service.AnalyticsService,
	chat *service.ChatService,
	dashboards *service.DashboardService,
	gateway *ws.Gateway,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors())

	authHandler := NewAuthHandler(users, cfg, logger)
	userHandler := NewUserHandler(users, logger)
	analyticsHandler := NewAnalyticsHandler(analytics, logger)
	chatHandler := NewChatHandler(chat, logger)
	dashboardHandler := NewDashboardHandler(dashboards, logger)

	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "timestamp": time.Now().UTC()}
		code := http.StatusOK
		if database != nil {
			if err := database.Health(c.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, status)
	})

	r.GET("/ws", gateway.HandleConnection)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)

		authed := authGroup.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		authed.GET("/profile", authHandler.Profile)
		authed.POST("/logout", authHandler.Logout)
	}

	usersGroup := api.Group("/users")
	{
		usersGroup.GET("/leaderboard", userHandler.Leaderboard)

		authed := usersGroup.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		authed.GET("/profile", authHandler.Profile)
		authed.PUT("/profile", userHandler.UpdateProfile)
		authed.PUT("/stats", userHandler.UpdateStats)
		authed.GET("/:userId", userHandler.Get)
		authed.DELETE("/:userId", userHandler.Delete)
	}

	analyticsGroup := api.Group("/analytics")
	{
		analyticsGroup.GET("/health", analyticsHandler.Health)

		authed := analyticsGroup.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		authed.POST("/data", analyticsHandler.Ingest)
		authed.GET("/data", analyticsHandler.Query)
		// Alias kept for clients written against the old API.
		authed.GET("/metrics", analyticsHandler.Query)
		authed.GET("/metrics/:metricType", analyticsHandler.MetricDetails)
		authed.GET("/dashboard/:userId", analyticsHandler.Dashboard)
	}

	chatGroup := api.Group("/chat")
	{
		chatGroup.GET("/health", chatHandler.Health)

		authed := chatGroup.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		authed.POST("/messages", chatHandler.PostMessage)
		authed.GET("/history", chatHandler.History)
		authed.POST("/sessions", chatHandler.CreateSession)
		authed.GET("/sessions", chatHandler.ListSessions)
		authed.POST("/sessions/:sessionId/delete", chatHandler.DeleteSession)
	}

	dashboardGroup := api.Group("/dashboard")
	{
		dashboardGroup.GET("/public", dashboardHandler.ListPublic)

		authed := dashboardGroup.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		authed.POST("", dashboardHandler.Create)
		authed.GET("", dashboardHandler.List)
		authed.GET("/:dashboardId", dashboardHandler.Get)
		authed.PATCH("/:dashboardId", dashboardHandler.Update)
		authed.DELETE("/:dashboardId", dashboardHandler.Delete)
	}

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// cors allows browser clients from any origin; auth is token-based.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
