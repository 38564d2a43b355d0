// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/handlers"
	"github.com/amirphl/shortlink/app/middleware"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/config"
	_ "github.com/amirphl/shortlink/docs"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const streamPath = "/api/v1/dashboard/stream"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups everything the router mounts
type Handlers struct {
	Auth      handlers.AuthHandlerInterface
	Link      handlers.LinkHandlerInterface
	Dashboard handlers.DashboardHandlerInterface
	Redirect  handlers.RedirectHandlerInterface
	SPA       *handlers.SPAHandler
	System    *handlers.SystemHandler
	AuthMW    *middleware.AuthMiddleware
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers) *FiberRouter {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ServerHeader: cfg.App.Name,
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		// the live stream outlives any write timeout; heartbeats detect dead peers instead
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return &FiberRouter{
		app:      app,
		cfg:      cfg,
		handlers: h,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	logging.Info().Msg("Setting up routes...")

	h := r.handlers
	authenticate := h.AuthMW.Authenticate()

	r.setupMiddleware()

	// Operational routes, no rate limiting
	r.app.Get("/health", h.System.Health)
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/swagger.json", h.System.SwaggerJSON)
	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(r.rateLimiter(r.cfg.Security.AuthRateLimit))
	auth.Post("/signup", h.Auth.Signup)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Get("/captcha", h.Auth.Captcha)
	auth.Post("/logout", authenticate, h.Auth.Logout)
	auth.Get("/me", authenticate, h.Auth.Me)

	links := api.Group("/links", authenticate)
	links.Post("/", h.Link.Create)
	links.Get("/", h.Link.List)
	links.Get("/export", h.Link.Export)
	links.Get("/:id", h.Link.Get)
	links.Delete("/:id", h.Link.Delete)

	dashboard := api.Group("/dashboard", authenticate)
	dashboard.Get("/", h.Dashboard.Snapshot)
	dashboard.Get("/stats", h.Dashboard.Stats)
	dashboard.Get("/analytics", h.Dashboard.Analytics)
	dashboard.Get("/stream", h.Dashboard.Stream)
	dashboard.Post("/refresh", h.Dashboard.Refresh)

	// Single-page application routes, guarded before the shell is served
	r.app.Get("/", h.SPA.Page(businessflow.RouteOpen))
	r.app.Get("/auth", h.SPA.Page(businessflow.RoutePublicOnly))
	r.app.Get("/dashboard", h.SPA.Page(businessflow.RouteProtected))
	r.app.Get("/link/:id", h.SPA.Page(businessflow.RouteProtected))

	// Built assets; a miss falls through to the short code route
	r.app.Get("/*", static.New(r.cfg.Server.StaticDir, static.Config{
		Next: func(c fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
		MaxAge: int((24 * time.Hour).Seconds()),
	}))

	r.app.Get("/:code", r.rateLimiter(r.cfg.Security.RedirectRateLimit), h.Redirect.Visit)

	// Everything else
	r.app.Use(h.SPA.Fallback)

	logging.Info().Msg("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			logging.Error().
				Str("request_id", requestid.FromContext(c)).
				Str("event", "panic").
				Interface("error", e).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("Recovered from panic")
		},
	}))

	r.app.Use(middleware.Metrics())

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// the event stream must be flushed as written
				return c.Path() == streamPath
			},
		}))
	}

	// Access log
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == r.cfg.Metrics.Path
		},
	}))
}

func (r *FiberRouter) rateLimiter(limit int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// long-lived streams are limited by connection count, not request rate
			return c.Path() == streamPath
		},
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	logging.Info().Str("address", address).Msg("Starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// errorHandler answers errors returned by handlers and middleware with the JSON envelope.
// Client errors keep their message; server errors are logged and reported generically.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	requestID := requestid.FromContext(c)
	if code >= fiber.StatusInternalServerError {
		logging.Error().Err(err).Int("status", code).Str("request_id", requestID).Str("path", c.Path()).Msg("Request failed")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}
