package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// Multi sends every message to all channels concurrently. A message counts as
// delivered when at least one channel accepted it.
type Multi struct {
	channels []Notifier
}

func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name()
	}
	return strings.Join(names, "+")
}

func (m *Multi) Notify(ctx context.Context, site, url string, items []string) error {
	return m.fanOut(ctx, site, func(ctx context.Context, n Notifier) error {
		return n.Notify(ctx, site, url, items)
	})
}

func (m *Multi) NotifyProducts(ctx context.Context, site string, products []models.Product) error {
	return m.fanOut(ctx, site, func(ctx context.Context, n Notifier) error {
		return n.NotifyProducts(ctx, site, products)
	})
}

func (m *Multi) NotifyError(ctx context.Context, site, message string) error {
	return m.fanOut(ctx, site, func(ctx context.Context, n Notifier) error {
		return n.NotifyError(ctx, site, message)
	})
}

func (m *Multi) fanOut(ctx context.Context, site string, send func(context.Context, Notifier) error) error {
	if len(m.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	errs := make([]error, len(m.channels))
	// A plain group: one channel failing must not cancel the others.
	var g errgroup.Group
	for i, ch := range m.channels {
		g.Go(func() error {
			if err := send(ctx, ch); err != nil {
				errs[i] = fmt.Errorf("%s: %w", ch.Name(), err)
				slog.Warn("Notification channel failed", "channel", ch.Name(), "site", site, "error", err)
				return errs[i]
			}
			return nil
		})
	}
	if g.Wait() == nil {
		return nil
	}

	// Wait only keeps the first failure; delivery still counts if any channel took it.
	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return errors.Join(errs...)
}
