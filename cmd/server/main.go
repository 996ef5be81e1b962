package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/aki-watcher/internal/app"
	"github.com/pauljones0/aki-watcher/internal/config"
	"github.com/pauljones0/aki-watcher/internal/logging"
	"github.com/pauljones0/aki-watcher/internal/models"
	"github.com/pauljones0/aki-watcher/internal/processor"
)

type checker interface {
	Run(ctx context.Context, dryRun bool) (processor.Summary, error)
	Status(ctx context.Context) (*models.StatusData, error)
}

type Server struct {
	checker    checker
	baseCtx    context.Context
	runTimeout time.Duration

	running atomic.Bool
	runs    sync.WaitGroup
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	closeLog := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: true})
	defer closeLog()
	slog.Info("Starting aki-watcher server...")

	sites, err := config.LoadSites(cfg.SitesPath)
	if err != nil {
		slog.Error("Critical error loading sites", "path", cfg.SitesPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner, err := app.New(ctx, cfg, sites)
	if err != nil {
		slog.Error("Critical error initializing", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	srv := &Server{checker: runner, baseCtx: ctx, runTimeout: cfg.RunTimeout}
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
	}
	// An in-flight run sees the cancelled context, stops checking and saves.
	srv.runs.Wait()
	slog.Info("Server stopped.")
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.CheckHandler)
	mux.HandleFunc("/check", s.CheckHandler)
	mux.HandleFunc("/status", s.StatusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	return mux
}

// CheckHandler starts a run in the background so the trigger does not wait
// on slow sites. Only one run is active at a time.
func (s *Server) CheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, "check already in progress", http.StatusConflict)
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in check run", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.runTimeout)
		defer cancel()
		if _, err := s.checker.Run(ctx, false); err != nil {
			slog.Error("Error running checks", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Check run started.")
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.checker.Status(r.Context())
	if err != nil {
		slog.Error("Failed to load status", "error", err)
		http.Error(w, "failed to load status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to write status response", "error", err)
	}
}
