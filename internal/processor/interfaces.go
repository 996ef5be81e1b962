package processor

import (
	"context"

	"github.com/pauljones0/aki-watcher/internal/config"
	"github.com/pauljones0/aki-watcher/internal/events"
	"github.com/pauljones0/aki-watcher/internal/models"
)

// Fetcher retrieves a page as text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error)
}

// Renderer fetches through a browser and can log in first.
type Renderer interface {
	Fetcher
	Authenticate(ctx context.Context, login config.Login) error
}

// Notifier abstracts the notification layer. A nil error means delivered.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, site, url string, items []string) error
	NotifyProducts(ctx context.Context, site string, products []models.Product) error
	NotifyError(ctx context.Context, site, message string) error
}

// StateStore abstracts the per-run state document.
type StateStore interface {
	Load(ctx context.Context) error
	Get(name string) (models.SiteState, bool)
	RecordCheck(result models.CheckResult, notified bool)
	RecordNotifiedProducts(name string, names []string)
	FilterNewProducts(name string, names []string) []string
	MarkNotifyPending(name string)
	Persist(ctx context.Context) error
}

// EventPublisher receives one event per checked site.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.CheckEvent) error
}
