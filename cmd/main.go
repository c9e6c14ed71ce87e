package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amrelngm6/crm-flutter-sub001/internal/handler"
	"github.com/amrelngm6/crm-flutter-sub001/internal/middleware"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/config"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting CRM mobile API...", zap.String("environment", cfg.Server.Env))

	// Initialize database (runs migrations automatically)
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Initialize auth handler with token lifetimes
	handler.InitAuthHandler(cfg)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Initialize Echo framework
	e := echo.New()
	e.Validator = validate.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth routes that issue tokens
	auth := e.Group("/api/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/refresh", handler.RefreshTokens)

	// Everything below requires a valid access token
	api := e.Group("/api", middleware.BearerTokenMiddleware)

	api.POST("/auth/logout", handler.Logout)
	api.POST("/auth/logout-all", handler.LogoutAll)
	api.GET("/auth/profile", handler.GetProfile)
	api.PUT("/auth/profile", handler.UpdateProfile)
	api.POST("/auth/change-password", handler.ChangePassword)

	clients := api.Group("/clients")
	clients.GET("", handler.ListClients)
	clients.POST("", handler.CreateClient)
	clients.GET("/:id", handler.GetClient)
	clients.PUT("/:id", handler.UpdateClient)
	clients.DELETE("/:id", handler.DeleteClient)
	clients.GET("/:id/projects", handler.ListClientProjects)
	clients.GET("/:id/invoices", handler.ListClientInvoices)

	chat := api.Group("/chat")
	chat.GET("/rooms", handler.ListRooms)
	chat.POST("/rooms", handler.CreateRoom)
	chat.GET("/rooms/:id", handler.GetRoom)
	chat.GET("/rooms/:id/messages", handler.ListMessages)
	chat.POST("/rooms/:id/messages", handler.SendMessage)
	chat.POST("/rooms/:id/read", handler.MarkRoomRead)
	chat.GET("/unread-count", handler.UnreadCount)
	chat.GET("/staff", handler.ListStaff)

	notifications := api.Group("/notifications")
	notifications.GET("", handler.ListNotifications)
	notifications.DELETE("", handler.BulkDeleteNotifications)
	notifications.GET("/unread-count", handler.NotificationUnreadCount)
	notifications.GET("/statistics", handler.NotificationStatistics)
	notifications.POST("/read-all", handler.MarkAllNotificationsRead)
	notifications.GET("/:id", handler.GetNotification)
	notifications.POST("/:id/read", handler.MarkNotificationRead)
	notifications.DELETE("/:id", handler.DeleteNotification)

	api.GET("/dashboard", handler.GetDashboard)
	api.GET("/dashboard/statistics", handler.DashboardStatistics)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
