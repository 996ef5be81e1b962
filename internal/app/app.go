// Package app wires configuration into the collaborators of a check run. Both
// entry points build one Runner and call Run once per check.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cloudstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/pauljones0/aki-watcher/internal/condition"
	"github.com/pauljones0/aki-watcher/internal/config"
	"github.com/pauljones0/aki-watcher/internal/events"
	"github.com/pauljones0/aki-watcher/internal/models"
	"github.com/pauljones0/aki-watcher/internal/notifier"
	"github.com/pauljones0/aki-watcher/internal/processor"
	"github.com/pauljones0/aki-watcher/internal/scraper"
	"github.com/pauljones0/aki-watcher/internal/state"
	"github.com/pauljones0/aki-watcher/internal/storage"
)

const userAgent = "aki-watcher"

type rendererFactory func(ctx context.Context) (scraper.Renderer, error)

type Runner struct {
	cfg       *config.Config
	sites     []config.Site
	evaluator *condition.Evaluator
	fetcher   processor.Fetcher
	backend   state.Backend
	notifier  processor.Notifier
	publisher processor.EventPublisher

	newRenderer rendererFactory
	closers     []func() error
}

// New builds everything a run needs except the browser, which is started per
// run and only when some site needs it.
func New(ctx context.Context, cfg *config.Config, sites []config.Site) (*Runner, error) {
	evaluator, err := condition.NewEvaluator(condition.LoadConfig())
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:       cfg,
		sites:     sites,
		evaluator: evaluator,
		fetcher:   scraper.New(cfg.FetchTimeout),
		notifier:  NewNotifier(cfg),
		newRenderer: func(ctx context.Context) (scraper.Renderer, error) {
			return scraper.NewRenderer(ctx, cfg.Renderer, cfg.ChromePath, cfg.FetchTimeout)
		},
	}

	backend, closeBackend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	r.closers = append(r.closers, closeBackend)

	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			slog.Warn("Check events disabled", "error", err)
		} else {
			r.publisher = pub
			r.closers = append(r.closers, pub.Close)
		}
	}
	return r, nil
}

// NewBackend opens the state backend named by cfg.StateBackend. The returned
// function releases its client.
func NewBackend(ctx context.Context, cfg *config.Config) (state.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StateBackend {
	case config.BackendGCS:
		client, err := cloudstorage.NewClient(ctx, option.WithUserAgent(userAgent))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		slog.Info("Using GCS state backend", "bucket", cfg.StorageBucket, "object", cfg.StatusObject)
		return storage.NewGCS(client, cfg.StorageBucket, cfg.StatusObject), client.Close, nil
	case config.BackendFirestore:
		fs, err := storage.NewFirestore(ctx, cfg.ProjectID, option.WithUserAgent(userAgent))
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using Firestore state backend", "project", cfg.ProjectID)
		return fs, fs.Close, nil
	case config.BackendFile, "":
		slog.Info("Using file state backend", "path", cfg.StatusFilePath)
		return storage.NewFile(cfg.StatusFilePath), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// NewNotifier returns the configured channels, or nil when there are none.
func NewNotifier(cfg *config.Config) processor.Notifier {
	var channels []notifier.Notifier
	if cfg.LineChannelAccessToken != "" && cfg.LineUserID != "" {
		channels = append(channels, notifier.NewLINE(cfg.LineChannelAccessToken, cfg.LineUserID))
	}
	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, notifier.NewDiscord(cfg.DiscordWebhookURL))
	}
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	default:
		return notifier.NewMulti(channels...)
	}
}

// Run performs one check run. Each run gets a fresh state store, so the
// document is loaded and persisted exactly once per run.
func (r *Runner) Run(ctx context.Context, dryRun bool) (processor.Summary, error) {
	opts := processor.Options{
		Notifier:      r.notifier,
		Publisher:     r.publisher,
		NotifyOnError: r.cfg.NotifyOnError,
		DryRun:        dryRun,
		Location:      r.cfg.Location,
	}

	if r.needsRenderer() {
		renderer, err := r.newRenderer(ctx)
		if err != nil {
			// Rendered sites will fail individually; the rest still run.
			slog.Error("Failed to start browser", "renderer", r.cfg.Renderer, "error", err)
		} else {
			defer func() {
				if err := renderer.Close(); err != nil {
					slog.Warn("Failed to close browser", "error", err)
				}
			}()
			opts.Renderer = renderer
		}
	}

	store := state.New(r.backend)
	return processor.New(r.sites, r.evaluator, r.fetcher, store, opts).Run(ctx)
}

// Status returns the persisted document, or an empty one if nothing has been
// saved yet.
func (r *Runner) Status(ctx context.Context) (*models.StatusData, error) {
	data, err := r.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &models.StatusData{Sites: []models.SiteState{}}, nil
	}
	return data, nil
}

func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func (r *Runner) needsRenderer() bool {
	for _, s := range r.sites {
		if s.NeedsRendering() {
			return true
		}
	}
	return false
}
