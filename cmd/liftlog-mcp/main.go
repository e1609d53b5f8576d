package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftlog/internal/config"
	liftmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	remote := flag.String("url", "", "base URL of a LiftLog server; reads history over HTTP")
	configPath := flag.String("config", "", "path to config file; reads history from the database")
	user := flag.String("user", "", "client whose history the tools answer for by default")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds liftmcp.DataSource
	switch {
	case *remote != "":
		ds = liftmcp.NewHTTPClient(*remote)
		log.Info("reading history over HTTP", "url", *remote)
	case *configPath != "":
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), storage.PoolOptions{
			DSN:         cfg.Database.DSN(),
			MaxConns:    cfg.Database.MaxConns,
			PingTimeout: cfg.Database.PingTimeout,
		})
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
	default:
		fmt.Fprintf(os.Stderr, "Usage: liftlog-mcp (-url http://liftlog | -config config.yaml) [-user ana]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := liftmcp.New(ds, *user, Version, log)
	err := mcpserver.ServeStdio(s, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return liftmcp.WithClientID(ctx, *user)
	}))
	if err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
