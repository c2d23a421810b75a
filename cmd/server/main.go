package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lifelink-backend/internal/config"
	"lifelink-backend/internal/database"
	"lifelink-backend/internal/handler"
	"lifelink-backend/internal/middleware"
	"lifelink-backend/internal/repository"
	"lifelink-backend/internal/service"
	"lifelink-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	cfg := config.LoadConfig()
	log.Println("Configuration loaded successfully")

	// 2. Structured logger
	logger := newLogger(cfg.Server.GinMode)
	defer logger.Sync()

	// 3. Initialize JWT utilities with config
	utils.InitJWT(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// 4. Initialize database connection
	db := database.Connect(cfg)
	database.Migrate(db)
	database.SeedAdmin(db, cfg)

	// 5. Initialize repositories
	userRepo := repository.NewUserRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// 6. Initialize services
	authService := service.NewAuthService(userRepo, auditRepo, logger)
	workflowService := service.NewWorkflowService(ledgerRepo, userRepo, auditRepo, logger)
	adminService := service.NewAdminService(userRepo, ledgerRepo, auditRepo, logger)
	sweeperService := service.NewSweeperService(ledgerRepo, logger, cfg.Sweeper.EntryTTL, cfg.Sweeper.Interval)

	// 7. Start expiry sweeper in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeperService.Start(ctx)

	// 8. Setup Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// 9. Setup Gin router
	r := gin.Default()

	// Apply CORS middleware
	r.Use(middleware.CORS(cfg))

	// 10. Register handlers
	authHandler := handler.NewAuthHandler(authService)
	donationHandler := handler.NewDonationHandler(workflowService)
	requestHandler := handler.NewRequestHandler(workflowService)
	adminHandler := handler.NewAdminHandler(adminService)

	// 11. Define routes
	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": "lifelink-backend",
		})
	})

	// Prometheus telemetry
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes (public)
	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
	}

	// Donation routes (authenticated)
	donations := r.Group("/donations")
	donations.Use(middleware.AuthMiddleware())
	{
		donations.POST("", middleware.RequireRoles("donor"), donationHandler.Create)
		donations.GET("", donationHandler.List)
		donations.GET("/stats", donationHandler.Stats)
		donations.GET("/:id", donationHandler.Get)
		donations.PATCH("/:id", donationHandler.UpdateStatus)
		donations.DELETE("/:id", donationHandler.Delete)
	}

	// Request routes (authenticated)
	requests := r.Group("/requests")
	requests.Use(middleware.AuthMiddleware())
	{
		requests.POST("", middleware.RequireRoles("patient"), requestHandler.Create)
		requests.GET("", requestHandler.List)
		requests.GET("/stats", requestHandler.Stats)
		requests.GET("/:id", requestHandler.Get)
		requests.PATCH("/:id", requestHandler.UpdateStatus)
		requests.DELETE("/:id", requestHandler.Delete)
	}

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRoles("admin"))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.GET("/stats", adminHandler.Stats)
	}

	// 12. Setup graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := r.Run(":" + cfg.Server.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Cancel sweeper context
	cancel()
	logger.Info("server exited")
}

func newLogger(ginMode string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if ginMode == "release" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}
