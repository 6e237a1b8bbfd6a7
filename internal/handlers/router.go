package handlers

import (
	"errors"
	"net/http"
	"time"

	"clubsite/internal/content"
	"clubsite/internal/metrics"
	"clubsite/internal/middleware"
	"clubsite/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// AppConfig carries everything NewApp wires into the Fiber app.
type AppConfig struct {
	AuthService *services.AuthService
	Renderer    *content.Renderer
	Logger      *logrus.Logger
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer // nil disables /metrics

	APIPrefix        string
	ImagesDir        string
	WelcomePath      string
	CORSAllowOrigins string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// NewApp builds the Fiber app with middleware and all routes registered.
func NewApp(cfg AppConfig) *fiber.App {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.CORSAllowOrigins == "" {
		cfg.CORSAllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "clubsite",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	// --- Middleware ---
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log, cfg.Metrics))
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// --- Account and health routes ---
	authHandler := NewAuthHandler(cfg.AuthService, log)
	authHandler.RegisterRoutes(app)
	if cfg.APIPrefix != "" {
		// The browser posts through the same prefix a reverse proxy would use.
		authHandler.RegisterRoutes(app.Group(cfg.APIPrefix))
	}
	NewHealthHandler(cfg.AuthService).RegisterRoutes(app)

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// --- Content routes ---
	if cfg.Renderer != nil {
		NewContentHandler(cfg.Renderer, cfg.WelcomePath).RegisterRoutes(app)
		app.Use("/static", filesystem.New(filesystem.Config{
			Root: http.FS(cfg.Renderer.Assets()),
		}))
	}
	if cfg.ImagesDir != "" {
		app.Static("/images", cfg.ImagesDir)
	}

	return app
}

// errorHandler writes every unhandled error in the account response shape.
// Only fiber.Error messages reach the client; anything else is generic.
func errorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := services.MsgInternal

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		}

		return c.Status(code).JSON(AccountResponse{Message: message})
	}
}
