package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"link-archiver/archiver"
	"link-archiver/changes"
	"link-archiver/config"
	"link-archiver/database"
	"link-archiver/extractor"
	"link-archiver/handlers"
	applogger "link-archiver/logger"
	"link-archiver/runner"
	"link-archiver/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger" // Request logging for the status API
	"go.uber.org/zap"
)

func main() {
	options, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := applogger.New(options.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional submission history
	var history *database.History
	if options.DatabasePath != "" {
		db, err := database.Open(options.DatabasePath, log)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		history = database.NewHistory(db)
	}

	store := storage.New(options.LogPath, log)

	mode := ""
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	switch mode {
	case "":
		if err := archive(ctx, options, store, history, log); err != nil {
			log.Fatal("Archive run failed", zap.Error(err))
		}
	case "serve":
		if err := serve(options, store, history, log); err != nil {
			log.Fatal("Server stopped", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [serve]\n", os.Args[0])
		os.Exit(2)
	}
}

// archive runs one extract-then-archive pass over options.Root.
func archive(ctx context.Context, options *config.Options, store *storage.Store, history *database.History, log *zap.Logger) error {
	opts := runner.Options{
		Root:    options.Root,
		Links:   extractor.New(log),
		Changes: changes.NewGitChanges(options.Root, log),
		Archiver: archiver.New(archiver.Config{
			MaxAttempts: options.MaxAttempts,
			Timeout:     options.HTTPTimeout,
			Logger:      log,
		}),
		Store:  store,
		Pause:  options.LinkPause,
		Out:    os.Stdout,
		Logger: log,
	}
	if history != nil {
		opts.History = history
	}

	summary, err := runner.New(opts).Run(ctx)
	if err != nil {
		return err
	}
	log.Debug("Run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("submitted", summary.Submitted),
		zap.Int("skipped", summary.Skipped))
	return nil
}

// serve exposes the archive log and history over HTTP until the process exits.
func serve(options *config.Options, store *storage.Store, history *database.History, log *zap.Logger) error {
	app := fiber.New()

	// Middleware
	app.Use(logger.New())

	api := handlers.NewAPI(store, nil)
	if history != nil {
		api = handlers.NewAPI(store, history)
	}
	handlers.SetupRoutes(app, api)

	log.Info("Starting server", zap.String("addr", options.ServeAddr))
	return app.Listen(options.ServeAddr)
}
