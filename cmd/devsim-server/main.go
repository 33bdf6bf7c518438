// KanColle Equipment Development MCP and HTTP Server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rsned/kc-development-server/internal/develop/api"
	"github.com/rsned/kc-development-server/internal/develop/config"
	"github.com/rsned/kc-development-server/internal/develop/db"
	"github.com/rsned/kc-development-server/internal/develop/engine"
	"github.com/rsned/kc-development-server/internal/develop/mcp"
	"github.com/rsned/kc-development-server/internal/develop/sync"
	platformotel "github.com/rsned/kc-development-server/internal/platform/otel"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.String("db", config.Default().DBPath, "Path to SQLite database")
	importItems := flag.String("import-items", "", "Import the item catalog from JSON file")
	importPool := flag.String("import-pool", "", "Import the base probability table from JSON file")
	importSecretaries := flag.String("import-secretaries", "", "Import secretary bonus rules from JSON file")
	flag.Bool("seed", false, "Reload the embedded pool table and secretary rules, replacing edits")
	flag.String("http", "", "HTTP listen address (empty disables the HTTP API)")
	flag.Bool("verbose", false, "Enable verbose logging")
	flag.String("otel-endpoint", "", "OTLP/HTTP trace collector endpoint")
	flag.String("lang", config.Default().Engine.DefaultLanguage, "Default language for item names")
	flag.Parse()

	cfg, err := config.Load(*configPath, flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	shutdownTracing, err := platformotel.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Open database
	database, err := db.OpenAndInit(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	syncer := sync.NewSyncer(database)

	// Handle import commands
	if *importItems != "" || *importPool != "" || *importSecretaries != "" || cfg.Seed {
		if cfg.Seed {
			logger.Info("seeding embedded reference data")
			if err := syncer.Seed(ctx, true); err != nil {
				logger.Error("failed to seed reference data", "error", err)
				os.Exit(1)
			}
		}

		imports := []struct {
			what string
			path string
			run  func(context.Context, string) (int, error)
		}{
			{"items", *importItems, syncer.ImportItemsFromFile},
			{"pool table", *importPool, syncer.ImportPoolFromFile},
			{"secretaries", *importSecretaries, syncer.ImportSecretariesFromFile},
		}
		for _, imp := range imports {
			if imp.path == "" {
				continue
			}
			logger.Info("importing "+imp.what, "file", imp.path)
			n, err := imp.run(ctx, imp.path)
			if err != nil {
				logger.Error("failed to import "+imp.what, "error", err)
				os.Exit(1)
			}
			logger.Info(imp.what+" imported successfully", "count", n)
		}

		// If only doing imports, exit
		if flag.NArg() == 0 && cfg.HTTPAddr == "" {
			return
		}
	}

	// A fresh database starts from the embedded data
	if err := syncer.Seed(ctx, false); err != nil {
		logger.Error("failed to seed reference data", "error", err)
		os.Exit(1)
	}

	// Create engine and servers
	eng, err := engine.New(ctx, db.NewSource(database), engine.Options{
		CacheSize:       cfg.Engine.CacheSize,
		SearchWorkers:   cfg.Engine.SearchWorkers,
		MaxResource:     cfg.Engine.MaxResource,
		DefaultLanguage: cfg.Engine.DefaultLanguage,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}
	if len(eng.Snapshot().Items()) == 0 {
		logger.Warn("item catalog is empty; import it with -import-items")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		hub := api.NewHub(logger)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		handler := api.NewHandler(eng, db.NewSecretaryStore(database), hub, logger)
		g.Go(func() error {
			return api.ListenAndServe(gctx, cfg.HTTPAddr, handler.Routes(), logger)
		})
	}

	// Run MCP server
	server := mcp.NewServer(eng, logger)
	g.Go(func() error {
		logger.Info("starting MCP server", "db", cfg.DBPath)
		if err := server.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("MCP server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "server stopped")
}
