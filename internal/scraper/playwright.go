package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pauljones0/aki-watcher/internal/config"
)

// Playwright renders pages in Chromium driven by Playwright. All pages share
// one browser context.
type Playwright struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
}

// NewPlaywright starts the Playwright driver and a headless Chromium. The
// driver and browsers must already be installed.
func NewPlaywright(timeout time.Duration) (*Playwright, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
		Locale:    playwright.String("ja-JP"),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(timeout.Milliseconds()))
	slog.Info("Playwright Chromium started")

	return &Playwright{pw: pw, browser: browser, context: bctx, timeout: timeout}, nil
}

func (p *Playwright) Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := p.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("Failed to close page", "error", err)
		}
	}()
	stop := context.AfterFunc(ctx, func() { _ = page.Close() })
	defer stop()

	if len(headers) > 0 {
		if err := page.SetExtraHTTPHeaders(headers); err != nil {
			return "", fmt.Errorf("failed to set headers: %w", err)
		}
	}

	resp, err := page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", rawURL, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return "", fmt.Errorf("failed to render %s: %w", rawURL, &HTTPError{URL: rawURL, StatusCode: resp.Status()})
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read rendered content: %w", err)
	}
	return html, nil
}

func (p *Playwright) Authenticate(ctx context.Context, login config.Login) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := p.context.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("Failed to close page", "error", err)
		}
	}()

	if _, err := page.Goto(login.URL); err != nil {
		return fmt.Errorf("failed to open login page %s: %w", login.URL, err)
	}
	if err := page.Locator(login.UsernameSelector).Fill(login.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := page.Locator(login.PasswordSelector).Fill(login.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := page.Locator(login.SubmitSelector).Click(); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("login at %s did not finish loading: %w", login.URL, err)
	}
	return nil
}

func (p *Playwright) Close() error {
	var firstErr error
	for _, closeFn := range []func() error{
		func() error { return p.context.Close() },
		func() error { return p.browser.Close() },
		p.pw.Stop,
	} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
