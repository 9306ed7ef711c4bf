// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "socialconnect/docs" // swagger docs
	"socialconnect/internal/auth"
	"socialconnect/internal/cache"
	"socialconnect/internal/config"
	"socialconnect/internal/database"
	"socialconnect/internal/featureflags"
	"socialconnect/internal/mailer"
	"socialconnect/internal/middleware"
	"socialconnect/internal/models"
	"socialconnect/internal/notifications"
	"socialconnect/internal/repository"
	"socialconnect/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	gate         *middleware.Gate
	notifier     *notifications.Notifier
	featureFlags *featureflags.Manager
	mailer       mailer.Mailer

	authService         *service.AuthService
	userService         *service.UserService
	postService         *service.PostService
	commentService      *service.CommentService
	notificationService *service.NotificationService
	adminService        *service.AdminService
}

// NewServer connects to the database and Redis and wires the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; cache, rate limit and reset tokens degrade without it.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)
	refreshStore := repository.NewRefreshTokenStore(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("socialconnect-api"),
		gate:           middleware.NewGate(tokens),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		mailer:         newMailer(cfg),
	}

	server.notificationService = service.NewNotificationService(
		repository.NewNotificationRepository(db), userRepo, server.notifier, server.featureFlags)
	server.authService = service.NewAuthService(service.AuthDeps{
		Users:            userRepo,
		RefreshTokens:    refreshStore,
		Tokens:           tokens,
		Hasher:           auth.NewPasswordHasher(cfg.BcryptCost),
		Resets:           service.NewResetTokenStore(redisClient),
		Mailer:           server.mailer,
		PasswordResetURL: cfg.PasswordResetURL,
		PasswordResetTTL: cfg.PasswordResetTTL,
	})
	server.userService = service.NewUserService(userRepo, followRepo, server.notificationService)
	server.postService = service.NewPostService(postRepo, followRepo, server.notificationService, server.featureFlags)
	server.commentService = service.NewCommentService(
		repository.NewCommentRepository(db), userRepo, server.postService, server.notificationService)
	server.adminService = service.NewAdminService(service.AdminDeps{
		Users:         userRepo,
		Posts:         postRepo,
		Stats:         repository.NewStatsRepository(db),
		RefreshTokens: refreshStore,
		Flags:         server.featureFlags,
		AdminSecret:   cfg.AdminSecretKey,
	})

	return server, nil
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.SMTPHost == "" {
		return mailer.NewLogMailer(middleware.Logger)
	}
	validFor := cfg.PasswordResetTTL.String()
	return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, validFor)
}

// NewApp returns a Fiber app whose error handler renders AppErrors as {error, code}.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   "SocialConnect API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := models.StatusFor(err)
			if status >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
					slog.String("path", c.Path()),
					slog.String("error", err.Error()),
				)
			}
			return models.RespondWithError(c, status, err)
		},
	})
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "SocialConnect Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	requireAuth := s.gate.RequireAuth()
	optionalAuth := s.gate.Optional()

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/refresh", middleware.RateLimit(s.redis, 30, time.Minute, "refresh"), s.Refresh)
	authGroup.Post("/logout", requireAuth, s.Logout)
	authGroup.Post("/change-password", requireAuth, s.ChangePassword)
	authGroup.Get("/check-username", s.CheckUsername)
	authGroup.Post("/password-reset", middleware.RateLimit(s.redis, 3, 15*time.Minute, "password_reset"), s.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", middleware.RateLimit(s.redis, 10, 15*time.Minute, "password_reset_confirm"), s.ConfirmPasswordReset)

	// User routes; define /me before the generic /:id
	users := api.Group("/users")
	users.Get("/", s.GetUsers)
	users.Get("/me", requireAuth, s.GetMyProfile)
	users.Put("/me", requireAuth, s.UpdateMyProfile)
	users.Patch("/me", requireAuth, s.UpdateMyProfile)
	users.Post("/:id/follow", requireAuth, s.FollowUser)
	users.Delete("/:id/follow", requireAuth, s.UnfollowUser)
	users.Get("/:id/followers", optionalAuth, s.GetFollowers)
	users.Get("/:id/following", optionalAuth, s.GetFollowing)
	users.Get("/:id", optionalAuth, s.GetUserProfile)

	// Post routes
	posts := api.Group("/posts")
	posts.Get("/", optionalAuth, s.GetPosts)
	posts.Post("/", requireAuth, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", requireAuth, s.LikePost)
	posts.Delete("/:id/like", requireAuth, s.UnlikePost)
	posts.Get("/:id/comments", optionalAuth, s.GetComments)
	posts.Post("/:id/comments", requireAuth, middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", optionalAuth, s.GetPost)
	posts.Put("/:id", requireAuth, s.UpdatePost)
	posts.Patch("/:id", requireAuth, s.UpdatePost)
	posts.Delete("/:id", requireAuth, s.DeletePost)

	// Notification routes
	notificationsGroup := api.Group("/notifications", requireAuth)
	notificationsGroup.Get("/", s.GetNotifications)
	notificationsGroup.Post("/mark-all-read", s.MarkAllNotificationsRead)
	notificationsGroup.Post("/:id/read", s.MarkNotificationRead)

	// Provisioning is secret-gated rather than admin-gated.
	api.Post("/admin/provision", middleware.RateLimit(s.redis, 5, 15*time.Minute, "admin_provision"), s.ProvisionAdmin)

	// Admin routes
	admin := api.Group("/admin", s.gate.RequireAdmin())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/users", s.GetAdminUsers)
	admin.Get("/users/:id", s.GetAdminUser)
	admin.Post("/users/:id/deactivate", s.DeactivateUser)
	admin.Post("/users/:id/activate", s.ActivateUser)
	admin.Get("/posts", s.GetAdminPosts)
	admin.Delete("/posts/:id", s.DeleteAdminPost)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the service runs degraded, not unready.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app, starts the notification subscriber and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if err := s.notifier.StartPatternSubscriber(s.shutdownCtx, s.onNotification); err != nil {
		middleware.Logger.Warn("notification subscriber not started", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// onNotification receives every published notification. Real-time delivery
// to browsers attaches here.
func (s *Server) onNotification(userID uint, payload string) {
	middleware.Logger.Debug("notification published",
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("bytes", len(payload)),
	)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
