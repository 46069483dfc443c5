// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"mainq/internal/bootstrap"
	"mainq/internal/config"
	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/notifications"
	"mainq/internal/pages"
	"mainq/internal/repository"
	"mainq/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config           *config.Config
	db               *gorm.DB
	redis            *redis.Client
	app              *fiber.App
	promMiddleware   *fiberprometheus.FiberPrometheus
	shutdownCtx      context.Context
	shutdownFn       context.CancelFunc
	userRepo         repository.UserRepository
	itemRepo         repository.ItemRepository
	articleRepo      repository.ArticleRepository
	commentRepo      repository.CommentRepository
	notificationRepo repository.NotificationRepository
	notifier         *notifications.Notifier
	hub              *notifications.Hub
	pages            *pages.Store
	googleOAuth      *oauth2.Config

	itemServices        map[models.ItemKind]*service.ItemService
	articleService      *service.ArticleService
	commentService      *service.CommentService
	profileService      *service.ProfileService
	notificationService *service.NotificationService
	accountService      *service.AccountService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, opts)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	store, err := pages.Default()
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("mainq-api"),
		userRepo:         repository.NewUserRepository(db),
		itemRepo:         repository.NewItemRepository(db),
		articleRepo:      repository.NewArticleRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		pages:            store,
		googleOAuth:      googleOAuthConfig(cfg),
	}

	// Live push degrades to a no-op without Redis.
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	server.wireServices()
	return server, nil
}

func (s *Server) wireServices() {
	maxContent := s.config.MaxContentKB * 1024

	s.itemServices = map[models.ItemKind]*service.ItemService{
		models.KindGame: service.NewItemService(models.KindGame, s.itemRepo, s.userRepo, s.notifier, s.isAdminByUserID, maxContent),
		models.KindLab:  service.NewItemService(models.KindLab, s.itemRepo, s.userRepo, s.notifier, s.isAdminByUserID, maxContent),
	}
	s.articleService = service.NewArticleService(s.articleRepo, s.userRepo, s.notifier, s.isAdminByUserID, maxContent)
	s.commentService = service.NewCommentService(s.commentRepo, s.itemRepo, s.articleRepo, s.userRepo, s.notifier)
	s.profileService = service.NewProfileService(s.userRepo)
	s.notificationService = service.NewNotificationService(s.notificationRepo)
	s.accountService = service.NewAccountService(s.userRepo, s.redis)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers with the site CSP
	app.Use(middleware.SecurityHeaders(s.config.StoreHostList()))

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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

	app.Use(middleware.AdFree(s.config.AdFreePrefixList()))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", s.optionalAuth(), s.AdminRequired(), monitor.New(monitor.Config{
		Title: "MAIN Q Metrics Dashboard",
	}))

	// Sandboxed payloads live outside /api so relative asset paths inside them resolve.
	app.Get("/play/:kind/:id", s.PlayItem)
	app.Get("/embed/:kind/:id", s.EmbedItem)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.SignupQuota), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginQuota), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/refresh", s.AuthRequired(), s.Refresh)
	auth.Get("/session", s.GetSession)
	auth.Post("/verify-email", s.AuthRequired(), middleware.RateLimit(s.redis, middleware.VerifyEmailQuota), s.RequestEmailVerification)
	auth.Get("/verify-email/confirm", s.ConfirmEmailVerification)
	auth.Get("/google/login", s.GoogleLogin)
	auth.Get("/google/callback", s.GoogleCallback)

	// Static informational pages
	api.Get("/pages", s.ListPages)
	api.Get("/pages/:slug", s.GetPage)

	// Public catalog routes
	api.Get("/catalog/options", s.GetCatalogOptions)
	api.Get("/popular", s.GetPopular)
	for _, kind := range []models.ItemKind{models.KindGame, models.KindLab} {
		items := api.Group("/" + kind.Plural())
		items.Get("/", s.ListItems(kind))
		items.Get("/:id/comments", s.ListComments(models.ParentForKind(kind)))
		items.Get("/:id", s.GetItem(kind))
	}
	articles := api.Group("/articles")
	articles.Get("/", s.ListArticles)
	articles.Get("/:id/comments", s.ListComments(models.ParentArticle))
	articles.Get("/:id", s.GetArticle)

	api.Get("/users/:id", s.GetUserProfile)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Live subscriptions; anonymous visitors receive catalog changes only.
	api.Get("/ws", s.optionalAuth(), s.WebsocketHandler())

	// Admin routes answer anonymous and non-admin callers identically,
	// so they are registered ahead of the AuthRequired group.
	admin := api.Group("/admin", s.optionalAuth(), s.AdminRequired())
	admin.Get("/items", s.AdminListItems)
	admin.Delete("/items/:kind/:id", s.AdminDeleteItem)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	for _, kind := range []models.ItemKind{models.KindGame, models.KindLab} {
		items := protected.Group("/" + kind.Plural())
		items.Post("/", middleware.RateLimit(s.redis, middleware.UploadQuota(string(kind))), s.CreateItem(kind))
		items.Post("/:id/comments", middleware.RateLimit(s.redis, middleware.CreateCommentQuota), s.CreateComment(models.ParentForKind(kind)))
		items.Put("/:id", s.UpdateItem(kind))
		items.Delete("/:id", s.DeleteItem(kind))
	}

	myArticles := protected.Group("/articles")
	myArticles.Post("/", middleware.RateLimit(s.redis, middleware.UploadQuota("article")), s.CreateArticle)
	myArticles.Post("/:id/comments", middleware.RateLimit(s.redis, middleware.CreateCommentQuota), s.CreateComment(models.ParentArticle))
	myArticles.Put("/:id", s.UpdateArticle)
	myArticles.Delete("/:id", s.DeleteArticle)

	me := protected.Group("/me")
	me.Get("/", s.GetMyProfile)
	me.Put("/", s.UpdateMyProfile)
	me.Get("/items", s.GetMyItems)

	notificationRoutes := protected.Group("/notifications")
	notificationRoutes.Get("/", s.GetNotifications)
	notificationRoutes.Get("/unread-count", s.GetUnreadCount)
	notificationRoutes.Post("/read-all", s.MarkAllNotificationsRead)
	notificationRoutes.Post("/:id/read", s.MarkNotificationRead)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "MAIN Q",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// newApp builds the Fiber app with the JSON error handler.
func (s *Server) newApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   "MAIN Q API",
		BodyLimit: (s.config.MaxContentKB + 256) * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.newApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
