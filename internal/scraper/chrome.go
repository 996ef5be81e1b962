package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pauljones0/aki-watcher/internal/config"
)

// Chrome renders pages in headless Chrome via the DevTools protocol. Each
// fetch opens a new tab in the same browser.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
}

// NewChrome launches the browser. execPath may be empty to use the default
// Chrome lookup.
func NewChrome(ctx context.Context, execPath string, timeout time.Duration) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("lang", "ja-JP"),
		chromedp.NoSandbox,
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	slog.Info("Headless Chrome started")

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       timeout,
	}, nil
}

// tab opens a new tab that is closed when the returned cancel is called or
// ctx is done.
func (c *Chrome) tab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, c.timeout)
	stop := context.AfterFunc(ctx, tabCancel)
	return tabCtx, func() {
		stop()
		timeoutCancel()
		tabCancel()
	}
}

func (c *Chrome) Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	tabCtx, cancel := c.tab(ctx)
	defer cancel()

	var actions []chromedp.Action
	if len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(h))
	}

	var html string
	var status int64
	actions = append(actions,
		chromedp.ActionFunc(func(ctx context.Context) error {
			resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(rawURL))
			if err != nil {
				return err
			}
			if resp != nil {
				status = resp.Status
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", rawURL, err)
	}
	if status >= 400 {
		return "", fmt.Errorf("failed to render %s: %w", rawURL, &HTTPError{URL: rawURL, StatusCode: int(status)})
	}
	return html, nil
}

// Authenticate fills and submits the login form. Session cookies stay in the
// browser for later fetches.
func (c *Chrome) Authenticate(ctx context.Context, login config.Login) error {
	tabCtx, cancel := c.tab(ctx)
	defer cancel()

	var before string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(login.URL),
		chromedp.WaitVisible(login.UsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(login.UsernameSelector, login.Username, chromedp.ByQuery),
		chromedp.SendKeys(login.PasswordSelector, login.Password, chromedp.ByQuery),
		chromedp.Location(&before),
		chromedp.Click(login.SubmitSelector, chromedp.ByQuery),
		waitNavigation(&before),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login at %s failed: %w", login.URL, err)
	}
	return nil
}

// waitNavigation polls until the tab's location differs from *from.
func waitNavigation(from *string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			var loc string
			if err := chromedp.Location(&loc).Do(ctx); err == nil && loc != *from {
				return nil
			}
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return errors.New("timed out waiting for navigation after submit")
				}
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

func (c *Chrome) Close() error {
	c.browserCancel()
	c.allocCancel()
	return nil
}
