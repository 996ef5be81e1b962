package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/aki-watcher/internal/models"
)

const (
	linePushURL      = "https://api.line.me/v2/bot/message/push"
	lineMaxTextRunes = 5000
)

// LINE pushes text messages to one user through the LINE Messaging API.
type LINE struct {
	token       string
	userID      string
	endpoint    string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewLINE(token, userID string) *LINE {
	return &LINE{
		token:       token,
		userID:      userID,
		endpoint:    linePushURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (l *LINE) Name() string { return "line" }

func (l *LINE) Notify(ctx context.Context, site, url string, items []string) error {
	return l.push(ctx, slotText(site, url, items))
}

func (l *LINE) NotifyProducts(ctx context.Context, site string, products []models.Product) error {
	return l.push(ctx, productText(site, products))
}

func (l *LINE) NotifyError(ctx context.Context, site, message string) error {
	return l.push(ctx, errorText(site, message))
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

func (l *LINE) push(ctx context.Context, text string) error {
	if err := l.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(linePushRequest{
		To:       l.userID,
		Messages: []lineMessage{{Type: "text", Text: truncate(text, lineMaxTextRunes)}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send LINE notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Info("LINE notification sent")
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("LINE API error: %d - %s", resp.StatusCode, string(body))
}
