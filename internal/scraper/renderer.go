package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/pauljones0/aki-watcher/internal/config"
)

// Renderer fetches pages through a headless browser. Pages share one cookie
// jar for the life of the Renderer, so a login carries over to later fetches.
type Renderer interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error)
	Authenticate(ctx context.Context, login config.Login) error
	Close() error
}

// NewRenderer starts the browser named by kind.
func NewRenderer(ctx context.Context, kind, chromePath string, timeout time.Duration) (Renderer, error) {
	switch kind {
	case config.RendererChromedp, "":
		return NewChrome(ctx, chromePath, timeout)
	case config.RendererPlaywright:
		return NewPlaywright(timeout)
	default:
		return nil, fmt.Errorf("unknown renderer %q", kind)
	}
}
