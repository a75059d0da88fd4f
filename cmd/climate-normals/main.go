package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/webmet/climate-normals/internal/api/http"
	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/climate"
	"github.com/webmet/climate-normals/internal/config"
	"github.com/webmet/climate-normals/internal/logging"
	"github.com/webmet/climate-normals/internal/pipeline"
	"github.com/webmet/climate-normals/internal/records"
	"github.com/webmet/climate-normals/internal/scheduler"
	"github.com/webmet/climate-normals/internal/webmet"
)

func main() {
	station := flag.String("station", "", "station name as listed by the archive; renders its summary and exits")
	from := flag.Int("from", 0, "first year to include (0 = archive epoch)")
	to := flag.Int("to", 0, "last year to include (0 = everything listed)")
	outFormat := flag.String("format", "table", "summary format: table or weatherbox")
	outPath := flag.String("out", "", "write the summary to this file instead of stdout")
	forceRefresh := flag.Bool("refresh", false, "re-enumerate the station catalog before doing anything else")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for all archive calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := webmet.NewClient(httpClient, cfg.ArchiveBaseURL, climate.VariableIDs(), log)

	cat := catalog.New(catalog.Config{
		Path:        cfg.CatalogPath,
		EpochYear:   cfg.EpochYear,
		EndYear:     cfg.EndYear,
		Concurrency: cfg.FetchConcurrency,
	}, client, log)

	if *forceRefresh {
		err = cat.Refresh(ctx)
	} else {
		err = cat.Load(ctx)
	}
	if err != nil {
		log.Error("failed to prepare station catalog", "error", err)
		os.Exit(1)
	}

	db, err := records.Open(cfg.CacheDBPath)
	if err != nil {
		log.Error("failed to open record cache", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := records.NewStore(db, client, cfg.FetchConcurrency, log)
	if err != nil {
		log.Error("failed to prepare record store", "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(cat, store, log)

	if *station != "" {
		if err := runOnce(ctx, pipe, *station, *outFormat, *from, *to, *outPath); err != nil {
			log.Error("summary failed", "station", *station, "error", err)
			os.Exit(1)
		}
		return
	}

	serve(ctx, cfg, cat, pipe, log)
}

// runOnce is the one-shot flow: fetch the station's full history, compute
// normals and write the rendered summary.
func runOnce(ctx context.Context, pipe *pipeline.Pipeline, station, kind string, from, to int, outPath string) error {
	// Warm the cache with the bounded worker pool before the lazy series
	// walks the months one by one.
	if err := pipe.Prefetch(ctx, station, from, to); err != nil {
		return err
	}

	text, err := pipe.Summary(ctx, station, kind, from, to)
	if err != nil {
		return err
	}

	if outPath == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

func serve(ctx context.Context, cfg *config.AppConfig, cat *catalog.Catalog, pipe *pipeline.Pipeline, log *slog.Logger) {
	app := fiber.New(fiber.Config{
		AppName:               "climate-normals",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "climate-normals",
			"stations": cat.Len(),
		})
	})

	httpapi.RegisterRoutes(app, cat, pipe)

	sched := scheduler.New(cat, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
