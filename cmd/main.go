package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ce-marketplace/internal/auth"
	"ce-marketplace/internal/config"
	"ce-marketplace/internal/database"
	"ce-marketplace/internal/email"
	"ce-marketplace/internal/geocode"
	"ce-marketplace/internal/handlers"
	"ce-marketplace/internal/jobs"
	"ce-marketplace/internal/middleware"
	"ce-marketplace/internal/payments"
	"ce-marketplace/internal/services"
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	db := database.GetDB()

	// External clients
	stripeClient := payments.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	geocoder := geocode.NewClient(cfg.Geocode.BaseURL)

	var mailer services.Mailer
	if cfg.SendGrid.APIKey != "" {
		mailer = email.NewService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, moderation e-mails disabled")
	}

	// Initialize services
	authService := services.NewAuthService(db)
	couponService := services.NewCouponService(db)
	classService := services.NewClassService(db)
	submissionService := services.NewSubmissionService(
		db,
		couponService,
		stripeClient,
		mailer,
		geocoder,
		logger,
		cfg.App.BaseURL,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	classHandler := handlers.NewClassHandler(classService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, authService)
	adminHandler := handlers.NewAdminHandler(db, submissionService, classService, couponService)
	webhookHandler := handlers.NewWebhookHandler(stripeClient, submissionService, logger)

	// Start the stale-checkout sweeper
	sweeper := jobs.NewCheckoutSweeper(submissionService, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("failed to start checkout sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Set up Gin router
	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/api/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.Me)
	}

	// Public class catalogue
	router.GET("/api/classes", classHandler.ListClasses)
	router.GET("/api/classes/categories", classHandler.GetCategories)
	router.GET("/api/classes/:id", classHandler.GetClass)

	// Payment provider webhooks (verified by signature, no JWT)
	router.POST("/api/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	// Submission routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/submissions", submissionHandler.CreateSubmission)
		api.GET("/submissions", submissionHandler.ListMySubmissions)
		api.POST("/submissions/cancel-pending", submissionHandler.CancelPendingPayment)
		api.GET("/submissions/:id", submissionHandler.GetMySubmission)
		api.PUT("/submissions/:id", submissionHandler.UpdateSubmission)
		api.POST("/submissions/:id/resubmit", submissionHandler.ResubmitSubmission)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.GET("/dashboard", adminHandler.GetDashboard)

		admin.GET("/submissions", adminHandler.ListSubmissions)
		admin.GET("/submissions/:id", adminHandler.GetSubmission)
		admin.POST("/submissions/:id/approve", adminHandler.ApproveSubmission)
		admin.POST("/submissions/:id/reject", adminHandler.RejectSubmission)

		admin.DELETE("/classes/:id", adminHandler.RemoveClass)

		admin.POST("/coupons", adminHandler.CreateCoupon)
		admin.GET("/coupons", adminHandler.ListCoupons)
		admin.POST("/coupons/:id/deactivate", adminHandler.DeactivateCoupon)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
