package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/aki-watcher/internal/condition"
	"github.com/pauljones0/aki-watcher/internal/config"
	"github.com/pauljones0/aki-watcher/internal/decision"
	"github.com/pauljones0/aki-watcher/internal/events"
	"github.com/pauljones0/aki-watcher/internal/metrics"
	"github.com/pauljones0/aki-watcher/internal/models"
)

const persistTimeout = 30 * time.Second

var (
	errNoRenderer = errors.New("site needs a rendered page but no renderer is available")
	errNotSent    = errors.New("notification not sent")
)

// Options holds the optional collaborators and switches of a run.
type Options struct {
	Renderer  Renderer       // required only when a site needs rendering
	Notifier  Notifier       // nil skips notifications
	Publisher EventPublisher // nil disables check events

	NotifyOnError bool
	// DryRun evaluates and decides but sends nothing and persists nothing.
	DryRun bool

	Location *time.Location
	Now      func() time.Time
}

// Summary describes one finished run.
type Summary struct {
	Checked   int           `json:"checked"`
	Available int           `json:"available"`
	Notified  int           `json:"notified"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Processor performs a single check run over the configured sites.
type Processor struct {
	sites     []config.Site
	evaluator *condition.Evaluator
	fetcher   Fetcher
	store     StateStore
	opts      Options

	loggedIn map[string]bool
}

func New(sites []config.Site, evaluator *condition.Evaluator, fetcher Fetcher, store StateStore, opts Options) *Processor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{
		sites:     sites,
		evaluator: evaluator,
		fetcher:   fetcher,
		store:     store,
		opts:      opts,
		loggedIn:  make(map[string]bool),
	}
}

// Run loads state, checks every site in order and persists state once.
// Only state load and persist failures are returned; a failing site is
// recorded as an error and the run continues.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	start := p.opts.Now()
	var sum Summary

	if err := p.store.Load(ctx); err != nil {
		err = fmt.Errorf("failed to load state: %w", err)
		metrics.ObserveRun(err, p.opts.Now())
		return sum, err
	}
	slog.Info("Starting check run", "sites", len(p.sites), "dry_run", p.opts.DryRun)

	for i, site := range p.sites {
		if ctx.Err() != nil {
			skipped := make([]string, 0, len(p.sites)-i)
			for _, s := range p.sites[i:] {
				skipped = append(skipped, s.Name)
			}
			slog.Warn("Run cancelled, skipping remaining sites", "skipped", skipped, "error", ctx.Err())
			break
		}

		checkStart := time.Now()
		result := p.check(ctx, site)
		notified := p.handle(ctx, site, result)

		sum.Checked++
		switch {
		case result.Failed():
			sum.Errors++
		case result.ConditionMet:
			sum.Available++
		}
		if notified {
			sum.Notified++
		}

		metrics.ObserveCheck(site.Name, string(result.Status()), result.Status() == models.StatusAvailable, time.Since(checkStart))
		p.publish(ctx, result, notified)
	}

	var err error
	if p.opts.DryRun {
		slog.Info("Dry run, state not persisted")
	} else {
		// Progress made before a cancellation is still worth saving.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if perr := p.store.Persist(persistCtx); perr != nil {
			err = fmt.Errorf("failed to persist state: %w", perr)
		}
	}

	sum.Duration = p.opts.Now().Sub(start)
	metrics.ObserveRun(err, p.opts.Now())
	slog.Info("Finished check run",
		"checked", sum.Checked,
		"available", sum.Available,
		"notified", sum.Notified,
		"errors", sum.Errors,
		"duration", sum.Duration)
	return sum, err
}

// check fetches and evaluates one site. Every failure, panics included, ends
// up in the result's Error field.
func (p *Processor) check(ctx context.Context, site config.Site) (result models.CheckResult) {
	now := p.opts.Now().In(p.opts.Location)
	result = models.CheckResult{SiteName: site.Name, CheckedAt: now}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while checking site", "site", site.Name, "panic", r)
			result = models.CheckResult{
				SiteName:  site.Name,
				Error:     fmt.Sprintf("panic: %v", r),
				CheckedAt: now,
			}
		}
	}()

	page, err := p.page(ctx, site)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	out, err := p.evaluator.Evaluate(page, site.Condition, condition.Options{
		MinDaysAhead: site.MinDaysAhead,
		Now:          now,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.ConditionMet = out.Met
	result.Items = out.Items
	result.Products = out.Products
	slog.Info("Checked site", "site", site.Name, "met", out.Met, "items", len(out.Items))
	return result
}

func (p *Processor) page(ctx context.Context, site config.Site) (condition.Page, error) {
	if !site.NeedsRendering() {
		body, err := p.fetcher.Fetch(ctx, site.URL, site.Headers)
		if err != nil {
			return condition.Page{}, err
		}
		return condition.NewTextPage(body), nil
	}

	if p.opts.Renderer == nil {
		return condition.Page{}, errNoRenderer
	}
	if site.Login != nil {
		key := site.Login.URL + "\x00" + site.Login.Username
		if !p.loggedIn[key] {
			slog.Info("Logging in", "site", site.Name, "url", site.Login.URL)
			if err := p.opts.Renderer.Authenticate(ctx, *site.Login); err != nil {
				return condition.Page{}, fmt.Errorf("login failed: %w", err)
			}
			p.loggedIn[key] = true
		}
	}
	html, err := p.opts.Renderer.Fetch(ctx, site.URL, site.Headers)
	if err != nil {
		return condition.Page{}, err
	}
	return condition.NewRenderedPage(html)
}

// handle decides, notifies and records one result. It reports whether a
// notification was delivered.
func (p *Processor) handle(ctx context.Context, site config.Site, result models.CheckResult) bool {
	var prior *models.SiteState
	if st, ok := p.store.Get(site.Name); ok {
		prior = &st
	}

	switch {
	case result.Failed():
		slog.Warn("Site check failed", "site", site.Name, "error", result.Error)
		p.store.RecordCheck(result, false)
		if p.opts.NotifyOnError && decision.ShouldNotifyError(prior, result) {
			_ = p.send(ctx, site.Name, "error", func(n Notifier) error {
				return n.NotifyError(ctx, site.Name, result.Error)
			})
		}
		return false

	case condition.IsProductScan(site.Condition):
		return p.handleProducts(ctx, site, result)

	default:
		if !decision.ShouldNotify(prior, result) {
			p.store.RecordCheck(result, false)
			return false
		}
		err := p.send(ctx, site.Name, "slots", func(n Notifier) error {
			return n.Notify(ctx, site.Name, site.URL, result.Items)
		})
		if err != nil {
			p.store.RecordCheck(result, false)
			p.store.MarkNotifyPending(site.Name)
			return false
		}
		p.store.RecordCheck(result, true)
		return true
	}
}

func (p *Processor) handleProducts(ctx context.Context, site config.Site, result models.CheckResult) bool {
	names := p.store.FilterNewProducts(site.Name, result.ProductNames())
	if len(names) == 0 {
		p.store.RecordCheck(result, false)
		return false
	}

	products := decision.FilterProducts(result.Products, names)
	slog.Info("New products found", "site", site.Name, "count", len(products))
	err := p.send(ctx, site.Name, "products", func(n Notifier) error {
		return n.NotifyProducts(ctx, site.Name, products)
	})
	if err != nil {
		p.store.RecordCheck(result, false)
		return false
	}
	p.store.RecordCheck(result, true)
	p.store.RecordNotifiedProducts(site.Name, names)
	return true
}

// send delivers through the configured notifier. Dry runs and a missing
// notifier count as not delivered.
func (p *Processor) send(ctx context.Context, site, kind string, fn func(Notifier) error) error {
	if p.opts.DryRun {
		slog.Info("Dry run, notification not sent", "site", site, "kind", kind)
		return errNotSent
	}
	if p.opts.Notifier == nil {
		slog.Warn("No notification channel configured, skipping", "site", site, "kind", kind)
		return errNotSent
	}

	err := fn(p.opts.Notifier)
	metrics.ObserveNotification(site, kind, err)
	if err != nil {
		slog.Error("Failed to send notification", "site", site, "kind", kind, "channel", p.opts.Notifier.Name(), "error", err)
		return err
	}
	slog.Info("Notification sent", "site", site, "kind", kind, "channel", p.opts.Notifier.Name())
	return nil
}

func (p *Processor) publish(ctx context.Context, result models.CheckResult, notified bool) {
	if p.opts.Publisher == nil || p.opts.DryRun {
		return
	}
	if err := p.opts.Publisher.Publish(ctx, events.NewCheckEvent(result, notified)); err != nil {
		slog.Warn("Failed to publish check event", "site", result.SiteName, "error", err)
	}
}
