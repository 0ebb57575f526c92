// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"time"

	_ "sprout/docs" // swagger docs
	"sprout/internal/auth"
	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/featureflags"
	"sprout/internal/mailer"
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/payment"
	"sprout/internal/repository"
	"sprout/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "sprout-api"

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Dependencies are the external collaborators the server talks to.
type Dependencies struct {
	Mailer   mailer.Mailer
	Payments payment.Processor
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *auth.TokenManager
	revocations    *auth.RevocationStore
	tickets        *auth.TicketStore
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	featureFlags   *featureflags.Manager
	authService    *service.AuthService
	profileService *service.ProfileService
	postService    *service.PostService
	commentService *service.CommentService
	paymentService *service.PaymentService
}

// NewServer creates a Server using already-initialized dependencies.
// A nil redis client disables caching, revocation and live notifications.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Dependencies) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}
	if deps.Payments == nil {
		return nil, errors.New("server requires a payment processor")
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.LogMailer{}
	}

	userRepo := repository.NewUserRepository(db)
	socialRepo := repository.NewSocialRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry),
		revocations:    auth.NewRevocationStore(redisClient),
		tickets:        auth.NewTicketStore(redisClient, auth.DefaultTicketTTL),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	server.hubs = []wireableHub{server.hub}

	server.authService = service.NewAuthService(userRepo, auth.NewBcryptHasher(cfg.BcryptCost),
		server.tokens, server.revocations, deps.Mailer, cfg.FrontendURL)
	server.profileService = service.NewProfileService(userRepo, socialRepo, server.notifier)
	server.postService = service.NewPostService(postRepo, userRepo, socialRepo, server.featureFlags, server.notifier)
	server.commentService = service.NewCommentService(commentRepo, postRepo, userRepo, server.featureFlags, server.notifier)
	server.paymentService = service.NewPaymentService(paymentRepo, deps.Payments)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so the trace id reaches logs.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Stripe-Signature, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
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
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later."))
		},
	}))
}

// routeGroup mounts the routes of one API prefix.
type routeGroup struct {
	prefix string
	mount  func(r fiber.Router)
}

// routeTable lists every API group under /api/v1.
func (s *Server) routeTable() []routeGroup {
	return []routeGroup{
		{prefix: "/users", mount: s.mountUsers},
		{prefix: "/profile", mount: s.mountProfile},
		{prefix: "/posts", mount: s.mountPosts},
		{prefix: "/favourites", mount: s.mountFavourites},
		{prefix: "/payments", mount: s.mountPayments},
		{prefix: "/ws", mount: s.mountWebsocket},
		{prefix: "/admin", mount: s.mountAdmin},
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.Root)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api/v1")
	api.Get("/swagger/*", swagger.HandlerDefault)

	for _, g := range s.routeTable() {
		g.mount(api.Group(g.prefix))
	}
}

func (s *Server) authRequired() fiber.Handler {
	return middleware.AuthRequired(s.tokens, s.revocations)
}

func (s *Server) optionalAuth() fiber.Handler {
	return middleware.OptionalAuth(s.tokens, s.revocations)
}

func (s *Server) mountUsers(r fiber.Router) {
	r.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	r.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	r.Post("/logout", s.authRequired(), s.Logout)
	r.Post("/recover-password", middleware.RateLimit(s.redis, 3, 15*time.Minute, "recover_password"), s.RecoverPassword)
	r.Post("/reset-password", middleware.RateLimit(s.redis, 5, 15*time.Minute, "reset_password"), s.ResetPassword)
	r.Post("/recover-with-answers", middleware.RateLimit(s.redis, 5, 15*time.Minute, "recover_answers"), s.RecoverWithAnswers)
	r.Post("/change-password", middleware.RateLimit(s.redis, 5, 15*time.Minute, "change_password"), s.ChangePassword)
}

func (s *Server) mountProfile(r fiber.Router) {
	r.Use(s.authRequired())
	r.Get("/me", s.GetProfile)
	r.Patch("/me", s.UpdateProfile)
	r.Post("/follow/:id", middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.ToggleFollow)
}

func (s *Server) mountPosts(r fiber.Router) {
	r.Get("/", s.optionalAuth(), s.ListPosts)

	// Define specific routes BEFORE the generic /:id routes
	r.Post("/create", s.authRequired(), middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	r.Patch("/edit/:id", s.authRequired(), s.UpdatePost)
	r.Delete("/delete/:id", s.authRequired(), s.DeletePost)
	r.Post("/favourites/:postId", s.authRequired(), s.ToggleFavourite)
	r.Get("/favourites/:userId", s.authRequired(), s.ListFavourites)

	r.Post("/:id/upvote", s.authRequired(), s.Upvote)
	r.Post("/:id/downvote", s.authRequired(), s.Downvote)
	r.Post("/:postId/comments", s.authRequired(), middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.AddComment)
	r.Put("/:postId/comments/:commentId", s.authRequired(), s.EditComment)
	r.Delete("/:postId/comments/:commentId", s.authRequired(), s.DeleteComment)
	r.Post("/:postId/comments/:commentId/replies", s.authRequired(), middleware.RateLimit(s.redis, 10, time.Minute, "create_reply"), s.AddReply)

	// Generic /:id route must be last
	r.Get("/:id", s.optionalAuth(), s.GetPost)
}

func (s *Server) mountFavourites(r fiber.Router) {
	r.Use(s.authRequired())
	r.Get("/", s.MyFavourites)
	r.Post("/:postId", s.ToggleFavourite)
}

func (s *Server) mountPayments(r fiber.Router) {
	r.Post("/checkout-session", s.authRequired(),
		middleware.RateLimitWithPolicy(s.redis, 10, time.Minute, middleware.FailClosed, "checkout"),
		s.CreateCheckoutSession)
	// Authenticated by the processor's signature header, not a bearer token.
	r.Post("/webhook", s.PaymentWebhook)
}

func (s *Server) mountWebsocket(r fiber.Router) {
	r.Post("/ticket", s.authRequired(), s.IssueWSTicket)
	r.Get("/", middleware.WebsocketAuth(s.tickets, s.tokens, s.revocations), requireUpgrade, s.WebsocketHandler())
}

func (s *Server) mountAdmin(r fiber.Router) {
	r.Use(s.authRequired(), middleware.AdminRequired())
	r.Get("/feature-flags", s.GetFeatureFlags)
}

// Root handles GET /
func (s *Server) Root(c *fiber.Ctx) error {
	return c.SendString("Gardening Tips & Advice Platform 🌱")
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional: an
// absent client is reported but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "Gardening Tips & Advice Platform 🌱",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// errorHandler maps errors that reach fiber (unknown routes, body limits,
// panics) to the response envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

// NewApp builds the fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Gardening Tips API",
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire all hubs to Redis subscriber if available
	if s.redis != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
				}
			}()
		}
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Close WebSocket connections before the listener so clients get a close frame
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := database.Close(s.db); err != nil {
		errs = append(errs, err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
