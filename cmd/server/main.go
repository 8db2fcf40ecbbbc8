package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KOFI-GYIMAH/stl-devs-web/docs"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/config"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/controller"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/db"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/handler"
	md "github.com/KOFI-GYIMAH/stl-devs-web/internal/middleware"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/queue"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/router"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/service"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/view"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/worker"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

const snapshotResource = "users"

// @title STL Devs Web
// @version 1.0.0
// @description Server-side views over the STL developer directory.
// @host localhost:8081
// @BasePath /v1
func main() {
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.LevelDebug)
	}

	// * Load configuration
	cfg, err := config.LoadConfiguration()
	if err != nil {
		logger.Error("‼️ Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// * Initialize the directory client
	client := resource.NewClient(cfg.BackendURL, cfg.RequestTimeout)

	var (
		database *db.PostgresDB
		opts     []resource.Option
	)

	// * Initialize the snapshot database
	if cfg.SnapshotsEnabled() {
		database, err = db.NewPostgresDB(cfg.DBURL)
		if err != nil {
			logger.Error("Failed to initialize database: %v", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.Migrate(cfg.MigrationsSource); err != nil {
			logger.Error("Failed to run migrations: %v", err)
			os.Exit(1)
		}
		logger.Info("Successfully ran migrations")

		opts = append(opts,
			resource.WithCache(service.NewSnapshotCache(database, snapshotResource)),
			resource.WithFallbackAfter(cfg.FallbackAfter),
		)
	} else {
		logger.Warn("DB_PATH not set, snapshots and refreshes are disabled")
	}

	users := controller.UsersResource(client, cfg.UserDetailShape == config.ShapeArray, opts...)

	// * Create and start the refresh worker
	var publisher handler.RefreshPublisher
	if database != nil {
		refreshService := service.NewRefreshService(users, database, snapshotResource, cfg.SnapshotRetention)

		refreshWorker := worker.NewRefreshWorker(refreshService, cfg.RefreshInterval)
		go refreshWorker.Run(ctx)
		publisher = refreshWorker

		if cfg.RabbitMQURL != "" {
			rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
			if err != nil {
				logger.Warn("RabbitMQ unavailable, using the in-process refresh queue: %v", err)
			} else {
				defer rabbitMQ.Close()

				err := rabbitMQ.ConsumeRefreshRequests(ctx, func(ctx context.Context, req queue.RefreshRequest) error {
					return refreshService.Refresh(ctx, req.UserID)
				})
				if err != nil {
					logger.Warn("Failed to consume refresh queue, using the in-process refresh queue: %v", err)
				} else {
					publisher = rabbitMQ
				}
			}
		}
	}

	renderer, err := view.New()
	if err != nil {
		logger.Error("Failed to load templates: %v", err)
		os.Exit(1)
	}

	// * Create the server
	viewHandler := handler.NewViewHandler(
		router.New(router.DefaultRoutes(), "/"),
		controller.DefaultRegistry(users),
		renderer,
		cfg.RenderTimeout,
		publisher,
	)

	r := mux.NewRouter()
	r.PathPrefix("/v1/swagger/").Handler(httpSwagger.WrapHandler)
	api := r.PathPrefix("/v1").Subrouter()
	viewHandler.RegisterRoutes(r, api)

	// * Wrapped outside the router so unmatched paths are logged and canonicalised too
	var h http.Handler = r
	h = md.TrimSlash(h)
	h = md.LoggingMiddleware(h)
	h = md.RequestIDMiddleware(h)

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: h,
	}

	go func() {
		logger.Info("Starting server on %s, directory at %s", cfg.ServerPort, client.BaseURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	// * Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}
