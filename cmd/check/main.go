// Command check runs one availability check over every configured site and
// exits. It is meant for cron or a scheduled CI job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pauljones0/aki-watcher/internal/app"
	"github.com/pauljones0/aki-watcher/internal/config"
	"github.com/pauljones0/aki-watcher/internal/logging"
	"github.com/pauljones0/aki-watcher/internal/metrics"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	sitesPath := flag.String("sites", "", "sites file (overrides SITES_CONFIG_PATH)")
	dryRun := flag.Bool("dry-run", false, "check and decide, but send nothing and keep state unchanged")
	checkConfig := flag.Bool("check-config", false, "validate configuration and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		return 1
	}
	closeLog := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closeLog()

	if *sitesPath != "" {
		cfg.SitesPath = *sitesPath
	}
	sites, err := config.LoadSites(cfg.SitesPath)
	if err != nil {
		slog.Error("Critical error loading sites", "path", cfg.SitesPath, "error", err)
		return 1
	}
	if *checkConfig {
		fmt.Printf("configuration OK: %d sites in %s\n", len(sites), cfg.SitesPath)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	runner, err := app.New(ctx, cfg, sites)
	if err != nil {
		slog.Error("Critical error initializing", "error", err)
		return 1
	}
	defer func() {
		if err := runner.Close(); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}()

	_, runErr := runner.Run(ctx, *dryRun)

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(context.WithoutCancel(ctx), cfg.PushgatewayURL, "aki_watcher"); err != nil {
			slog.Warn("Failed to push metrics", "error", err)
		}
	}

	if runErr != nil {
		slog.Error("Check run failed", "error", runErr)
		return 1
	}
	return 0
}
