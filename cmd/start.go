package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livesync/core/database"
	"livesync/core/journal"
	"livesync/core/loader"
	"livesync/core/logger"
	"livesync/core/metrics"
	"livesync/core/middleware/auth"
	"livesync/core/middleware/rayid"
	"livesync/core/reconcile"
	"livesync/feature/feeds"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "livesync/docs/swagger"
)

// @title livesync API
// @version 1.0
// @description Read API over live-synchronized collections.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync sessions and the HTTP API",
	Long:  `Starts one session per enabled feed and serves their snapshots, metrics and archives over HTTP.`,
	RunE:  runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logg.Sync()
	zap.ReplaceGlobals(logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	recorders := reconcile.Recorders{rec}

	// Anomaly journal (optional)
	var jrnl *journal.Journal
	if cfg.Database.Enabled {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		if err := journal.Migrate(db); err != nil {
			return err
		}
		jrnl = journal.New(db, cfg.Journal, logg)
		defer jrnl.Close()
		recorders = append(recorders, jrnl)
		logg.Info("Anomaly journal enabled", zap.String("driver", cfg.Database.Driver))
	}

	// Snapshot archives (optional)
	deps := feeds.Deps{
		Credentials: cfg.Auth,
		Recorders:   recorders,
		StateHook:   rec.SetState,
		OnPublish:   rec.Observe,
		Logger:      logg,
	}
	var archives feeds.Archives
	if cfg.Storage.Enabled {
		archiver, err := newArchiver(ctx, cfg, logg)
		if err != nil {
			return err
		}
		archives = archiver
		if cfg.Archive.OnShutdown {
			deps.Archiver = archiver
		}
	}

	sessions, closeChannels, err := feeds.Open(ctx, cfg.Feeds.All(), deps)
	if err != nil {
		return err
	}
	defer closeChannels()

	service := feeds.NewService(logg, archives, sessions...)
	runDone := make(chan error, 1)
	go func() { runDone <- service.Run(ctx) }()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// RayID first so every log line below can carry it.
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

	// Public routes
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey, Skip: []string{"/swagger", "/metrics", "/health"}}))

	mgr := loader.NewManager()
	mgr.Register(feeds.NewFeature(service))
	loaded, err := mgr.LoadAll(app)
	if err != nil {
		return err
	}
	logg.Info("Features loaded", zap.Strings("features", loaded), zap.Strings("feeds", service.Names()))

	listenErr := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("port", cfg.Server.Port))
		listenErr <- app.Listen(cfg.Server.Addr())
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		stop()
		runErr = err
	case err := <-runDone:
		// A session stopped on its own; take the whole service down.
		stop()
		runErr = err
		runDone <- nil
	}

	logg.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(time.Duration(cfg.Server.ShutdownSeconds) * time.Second); err != nil {
		logg.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}
