package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/aiprovider"
	"github.com/magazine-cms/internal/api"
	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/dispatcher"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/service"
	"github.com/magazine-cms/internal/storage"
	"github.com/magazine-cms/pkg/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run migrations (up|down) and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", "json")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting magazine CMS server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	switch *migrateCmd {
	case "":
	case "up":
		if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		return
	case "down":
		if err := db.MigrateDown(cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back database migrations")
		}
		return
	default:
		log.Fatal().Str("migrate", *migrateCmd).Msg("Unknown migrate command, use up or down")
	}

	// Run migrations
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// External collaborators
	gateway := aiprovider.NewGateway(aiprovider.Options{
		TestTimeout:    cfg.AI.TestTimeout,
		RewriteTimeout: cfg.AI.RewriteTimeout,
	}, log)
	jobs := dispatcher.New(cfg.Dispatcher, log)
	images := storage.NewLocalStore(cfg.Storage.ImageRoot)

	// Initialize services
	services := service.NewServices(repos, service.Deps{
		Gateway:    gateway,
		Dispatcher: jobs,
		Images:     images,
	}, cfg, log)

	// Start background keyword rewrite processor
	services.Keyword.StartProcessor(context.Background())

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(services, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop keyword rewrite processor
	services.Keyword.StopProcessor()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
