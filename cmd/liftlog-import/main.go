package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	csvPath := flag.String("file", "", "path to an Alpha Progression CSV export (required)")
	user := flag.String("user", "", "client id the history belongs to (required)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *csvPath == "" || *user == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-import -config config.yaml -user ana -file export.csv\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Error("opening export", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, cfg.Database.Migrations); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()
	db, err := storage.New(ctx, storage.PoolOptions{
		DSN:         dsn,
		MaxConns:    cfg.Database.MaxConns,
		PingTimeout: cfg.Database.PingTimeout,
	})
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	result, err := alpha.NewProvider(db, log).Ingest(ctx, f, *user)
	if err != nil {
		log.Error("import failed", "error", err)
		printResult(log, result)
		os.Exit(1)
	}

	printResult(log, result)
	log.Info("import complete")
}

func printResult(log *slog.Logger, result *ingest.Result) {
	if result == nil {
		return
	}
	log.Info("import stats",
		"sessions_received", result.SessionsReceived,
		"sessions_imported", result.SessionsImported,
		"sets_received", result.SetsReceived,
		"warmups_skipped", result.WarmupsSkipped,
		"rows_inserted", result.RowsInserted,
	)
}
