package router

import (
	"github.com/anonto42/riseup-connect/backend/internal/handlers"
	"github.com/anonto42/riseup-connect/backend/internal/middleware"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/anonto42/riseup-connect/backend/pkg/config"
	"github.com/anonto42/riseup-connect/backend/pkg/mailer"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Deps are the connected clients the routes are built on
type Deps struct {
	DB     *config.DB
	Config *config.Config
	// Firebase is nil when no credentials are configured
	Firebase services.TokenVerifier
	Mailer   mailer.Sender
	Log      logrus.FieldLogger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) {
	log := d.Log

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.DB.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(d.DB.Postgres)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(d.DB.Postgres)
	likeRepo := repositories.NewPostgresLikeRepository(d.DB.Postgres)
	commentRepo := repositories.NewPostgresCommentRepository(d.DB.Postgres)
	postRepo := repositories.NewMongoPostRepository(d.DB.MongoDB)
	notificationRepo := repositories.NewMongoNotificationRepository(d.DB.MongoDB)
	momentRepo := repositories.NewMongoMomentRepository(d.DB.MongoDB)
	otpRepo := repositories.NewMongoOTPRepository(d.DB.MongoDB)

	var cooldown repositories.CooldownStore
	if d.DB.Redis != nil {
		cooldown = repositories.NewRedisCooldownStore(d.DB.Redis)
	}

	// --- Services ---
	notifications := services.NewNotificationService(notificationRepo, userRepo, postRepo, log)
	moments := services.NewMomentService(momentRepo, followRepo, userRepo, log)
	otps := services.NewOTPService(otpRepo, userRepo, cooldown, d.Mailer, log)
	auth := services.NewAuthService(userRepo, otps, d.Firebase, d.Config.JWTSecret, d.Config.JWTExpiry, log)
	accounts := services.NewAccountService(userRepo, followRepo, friendshipRepo, notifications, moments, log)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(otps, auth).RegisterAuthRoutes(authGroup)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(d.Config.JWTSecret))

	handlers.NewUserHandler(userRepo, accounts, notifications).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo, notifications).RegisterFollowRoutes(api)
	handlers.NewFriendshipHandler(friendshipRepo, userRepo, notifications).RegisterFriendshipRoutes(api)
	handlers.NewPostHandler(postRepo, userRepo, likeRepo, notifications).RegisterPostRoutes(api)
	handlers.NewFeedHandler(followRepo, postRepo, userRepo, likeRepo).RegisterFeedRoutes(api)
	handlers.NewLikeHandler(likeRepo, postRepo, notifications).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(commentRepo, postRepo, userRepo, notifications).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(notifications).RegisterNotificationRoutes(api)
	handlers.NewMomentHandler(moments).RegisterMomentRoutes(api)

	log.WithField("firebase", d.Firebase != nil).Info("all routes configured")
}
