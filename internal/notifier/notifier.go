// Package notifier delivers availability alerts to LINE and Discord.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// Notifier is one delivery channel. A nil error means the message was accepted.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, site, url string, items []string) error
	NotifyProducts(ctx context.Context, site string, products []models.Product) error
	NotifyError(ctx context.Context, site, message string) error
}

const (
	headlineAvailable = "空きが見つかりました！"
	headlineProducts  = "新しい商品が見つかりました！"
	headlineError     = "チェック中にエラーが発生しました:"
)

func slotText(site, url string, items []string) string {
	var b strings.Builder
	b.WriteString(site)
	b.WriteString("\n\n")
	b.WriteString(headlineAvailable)
	if len(items) > 0 {
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString("\n・")
			b.WriteString(item)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(url)
	return b.String()
}

func productText(site string, products []models.Product) string {
	var b strings.Builder
	b.WriteString(site)
	b.WriteString("\n\n")
	b.WriteString(headlineProducts)
	b.WriteString("\n")
	for _, p := range products {
		b.WriteString("\n・")
		b.WriteString(p.Name)
		if p.URL != "" {
			b.WriteString("\n  ")
			b.WriteString(p.URL)
		}
	}
	return b.String()
}

func errorText(site, message string) string {
	return fmt.Sprintf("[エラー] %s\n\n%s\n%s", site, headlineError, message)
}

// truncate cuts s to at most limit runes, marking the cut.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	const marker = "\n…"
	return string(r[:limit-len([]rune(marker))]) + marker
}
