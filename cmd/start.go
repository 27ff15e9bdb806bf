package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"case-mirror/core/config"
	"case-mirror/core/database"
	"case-mirror/core/loader"
	"case-mirror/core/logger"
	"case-mirror/core/lookupcache"
	"case-mirror/core/middleware/auth"
	"case-mirror/core/middleware/rayid"
	"case-mirror/core/remote"
	"case-mirror/core/storage"

	"case-mirror/feature/cases"
	casestore "case-mirror/feature/cases/store"
	casesync "case-mirror/feature/cases/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "case-mirror/docs/swagger"
)

// @title Case Mirror API
// @version 1.0
// @description API for mirroring test case records between a local store and a remote table service.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the case mirror server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := casestore.AutoMigrate(db); err != nil {
			logg.Fatal("Failed to migrate schema", zap.Error(err))
		}

		// 4. Initialize Storage
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}
		exists, err := store.BucketExists(cmd.Context(), cfg.Storage.Bucket)
		if err != nil {
			logg.Fatal("Failed to check attachment bucket", zap.Error(err))
		}
		if !exists {
			if err := store.MakeBucket(cmd.Context(), cfg.Storage.Bucket, minio.MakeBucketOptions{Region: cfg.Storage.Region}); err != nil {
				logg.Fatal("Failed to create attachment bucket", zap.Error(err))
			}
			logg.Info("Created attachment bucket", zap.String("bucket", cfg.Storage.Bucket))
		}

		// 5. Wire the cases feature
		source := remote.NewClient(cfg.Remote, logg)
		recordStore := casestore.New(db)
		engine := casesync.NewEngine(recordStore, source, logg, casesync.Options{
			KeyField: cfg.Remote.KeyField,
		})
		catalog := lookupcache.New[map[string]string](time.Duration(cfg.Remote.CatalogTTLSeconds) * time.Second)
		service := cases.NewService(recordStore, source, engine, catalog, store, cfg.Storage.Bucket, logg)

		mgr := loader.NewManager()
		mgr.Register(cases.NewFeature(service))

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// Middleware Registration
		// RayID first so every log line of a request can be traced.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 7. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
