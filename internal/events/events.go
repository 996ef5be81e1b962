// Package events publishes one message per site check to NATS so other
// services can follow availability without reading the status document.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// CheckEvent is the published payload.
type CheckEvent struct {
	Site         string            `json:"site"`
	Status       models.SiteStatus `json:"status"`
	ConditionMet bool              `json:"conditionMet"`
	Items        []string          `json:"items,omitempty"`
	Notified     bool              `json:"notified"`
	Error        string            `json:"error,omitempty"`
	CheckedAt    time.Time         `json:"checkedAt"`
}

// NewCheckEvent builds the event for result.
func NewCheckEvent(result models.CheckResult, notified bool) CheckEvent {
	return CheckEvent{
		Site:         result.SiteName,
		Status:       result.Status(),
		ConditionMet: result.ConditionMet,
		Items:        result.Items,
		Notified:     notified,
		Error:        result.Error,
		CheckedAt:    result.CheckedAt,
	}
}

type Publisher struct {
	nc      *nats.Conn
	subject string
	publish func(subject string, data []byte) error
}

// Connect dials the NATS server at url. Events go to subject.<site status>.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("aki-watcher"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &Publisher{nc: nc, subject: subject, publish: nc.Publish}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev CheckEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal check event: %w", err)
	}
	subject := p.subject + "." + string(ev.Status)
	if err := p.publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
