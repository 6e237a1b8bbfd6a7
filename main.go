package main

import (
	"os"
	"os/signal"
	"syscall"

	"clubsite/internal/config"
	"clubsite/internal/content"
	"clubsite/internal/database"
	"clubsite/internal/handlers"
	"clubsite/internal/logger"
	"clubsite/internal/metrics"
	"clubsite/internal/repositories"
	"clubsite/internal/services"
	"clubsite/pkg/rabbitmq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)

	// --- User store ---
	userRepo, closeStore, err := openUserStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open user store")
	}
	defer closeStore()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// --- Account events (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Logger: log})
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.ConsumeAccountEvents(rabbitmq.AuditHandler(log)); err != nil {
			log.WithError(err).Error("Failed to start account event consumer")
		}
	}

	// --- Services ---
	authService, err := services.NewAuthService(userRepo, services.AuthOptions{
		BcryptCost:     cfg.BcryptCost,
		StorageTimeout: cfg.DBTimeout,
		Logger:         log,
		Publisher:      publisher,
		Metrics:        collector,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize account service")
	}

	renderer, err := content.NewRenderer(content.Options{
		APIBase:     cfg.APIPrefix,
		ImagesURL:   "/images",
		WelcomePath: cfg.WelcomePath,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to load page templates")
	}

	// --- Fiber app ---
	app := handlers.NewApp(handlers.AppConfig{
		AuthService:      authService,
		Renderer:         renderer,
		Logger:           log,
		Metrics:          collector,
		Gatherer:         registry,
		APIPrefix:        cfg.APIPrefix,
		ImagesDir:        cfg.ImagesDir,
		WelcomePath:      cfg.WelcomePath,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("addr", cfg.AppPort).Info("Starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	log.Info("Server gracefully stopped")
}

// openUserStore returns the repository for the configured driver and a
// function releasing its resources.
func openUserStore(cfg *config.Config, log *logrus.Logger) (repositories.UserRepository, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("Using in-memory user store; accounts are lost on restart")
		return repositories.NewMemoryUserRepository(), func() {}, nil
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
	}

	closeFn := func() {
		if err := database.Close(db); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}
	return repositories.NewGORMUserRepository(db), closeFn, nil
}
