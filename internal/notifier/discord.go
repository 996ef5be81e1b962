package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/aki-watcher/internal/models"
)

const (
	colorAvailable = 3066993  // #2ECC71
	colorProducts  = 3447003  // #3498DB
	colorError     = 15158332 // #E74C3C

	discordMaxDescription = 4096
)

// Discord posts embeds to a channel webhook.
type Discord struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
	now         func() time.Time
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Webhooks allow roughly 30 messages a minute.
		rateLimiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		now:         time.Now,
	}
}

func (c *Discord) Name() string { return "discord" }

func (c *Discord) Notify(ctx context.Context, site, url string, items []string) error {
	var desc strings.Builder
	desc.WriteString(headlineAvailable)
	for _, item := range items {
		desc.WriteString("\n• ")
		desc.WriteString(item)
	}
	return c.send(ctx, discordEmbed{
		Title:       site,
		URL:         url,
		Description: desc.String(),
		Color:       colorAvailable,
	})
}

func (c *Discord) NotifyProducts(ctx context.Context, site string, products []models.Product) error {
	var desc strings.Builder
	desc.WriteString(headlineProducts)
	for _, p := range products {
		desc.WriteString("\n• ")
		if p.URL != "" {
			fmt.Fprintf(&desc, "[%s](%s)", p.Name, p.URL)
		} else {
			desc.WriteString(p.Name)
		}
	}
	return c.send(ctx, discordEmbed{
		Title:       site,
		Description: desc.String(),
		Color:       colorProducts,
	})
}

func (c *Discord) NotifyError(ctx context.Context, site, message string) error {
	return c.send(ctx, discordEmbed{
		Title:       "[エラー] " + site,
		Description: headlineError + "\n" + message,
		Color:       colorError,
	})
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Color       int    `json:"color,omitempty"`
}

func (c *Discord) send(ctx context.Context, embed discordEmbed) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	embed.Description = truncate(embed.Description, discordMaxDescription)
	embed.Timestamp = c.now().UTC().Format(time.RFC3339)
	payloadBytes, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
}
