package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/imagedataextract/ImageDataExtract/app/controllers"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cache"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/content"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/fetch"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/jobqueue"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metadata"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metrics/counter"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/middleware"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/router"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/turnstile"
	"github.com/imagedataextract/ImageDataExtract/views"
)

func main() {
	app, jobs := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		fiberlog.Info("[Server] Shutting down")
		if jobs != nil {
			jobs.Stop()
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			fiberlog.Errorf("[Server] Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires configuration, storage and routes. The returned
// manager is nil when the job queue could not be started.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/imagedata to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	siteContent, err := content.Load()
	if err != nil {
		panic(fmt.Sprintf("load site content: %v", err))
	}

	store := setupBlobStore()
	sweeper := cleanup.NewSweeper(store)
	jobs := setupJobs(store, sweeper)

	api := controllers.APIController{
		Verifier:       turnstile.NewClientFromEnv(),
		Fetcher:        fetch.NewHTTPFetcher(),
		Extractor:      metadata.NewPipeline(),
		Sweeper:        sweeper,
		CacheTTL:       env.GetDuration("METADATA_CACHE_TTL", controllers.DefaultCacheTTL),
		MaxUploadBytes: env.GetInt64("UPLOAD_MAX_BYTES", controllers.DefaultMaxUploadBytes),
		Store:          store,
	}
	// a typed nil *Manager must not end up in the interface field
	if jobs != nil {
		api.Jobs = jobs
	}
	var usage *counter.Counter
	if cache.IsAvailable() {
		api.Cache = cache.Store{}
		usage = counter.New(cache.GetClient())
		api.Counter = usage
	}

	// init fiber app
	cfg := fiber.Config{
		Views: html.NewFileSystem(http.FS(views.FS), ".html"),
		// multipart overhead on top of the largest accepted upload
		BodyLimit: int(api.MaxUploadBytes) + 1<<20,
	}
	// the rate limiter keys on c.IP()
	middleware.ApplyTrustedProxies(&cfg)
	app := fiber.New(cfg)

	// ignore favicon requests
	app.Use(favicon.New())

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if password := env.GetEnv("METRICS_PASSWORD", ""); password != "" {
		metricsAuth := basicauth.New(basicauth.Config{
			Users: map[string]string{
				env.GetEnv("METRICS_USER", "admin"): password,
			},
		})
		if usage != nil {
			app.Get("/metrics/usage", metricsAuth, controllers.HandleUsage(usage))
		}
		app.Get("/metrics", metricsAuth, monitor.New())
	}

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app,
		controllers.NewAPIController(api),
		controllers.NewPageController(siteContent, env.GetEnv("TURNSTILE_SITE_KEY", "")),
	)

	return app, jobs
}

func setupBlobStore() blobstore.Store {
	cfg, err := blobstore.LoadConfig()
	if err != nil {
		fiberlog.Warnf("[BlobStore] %v, uploads are disabled", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := blobstore.NewS3Store(ctx, cfg)
	if err != nil {
		fiberlog.Errorf("[BlobStore] Could not connect to bucket %s: %v", cfg.GetBucketName(), err)
		return nil
	}
	return store
}

func setupJobs(store blobstore.Store, sweeper *cleanup.Sweeper) *jobqueue.Manager {
	if store == nil {
		return nil
	}
	if !cache.IsAvailable() {
		fiberlog.Warn("[JobQueue] Cache unavailable, uploads are deleted inline and the periodic sweep is off")
		return nil
	}

	m := jobqueue.NewManager(
		cache.GetClient(),
		store,
		sweeper,
		int(env.GetInt64("JOBQUEUE_WORKERS", jobqueue.DefaultWorkers)),
		env.GetDuration("CLEANUP_INTERVAL", jobqueue.DefaultSweepInterval),
	)
	m.Start()
	return m
}
