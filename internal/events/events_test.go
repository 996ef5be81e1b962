package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pauljones0/aki-watcher/internal/models"
)

func TestPublish(t *testing.T) {
	var gotSubject string
	var gotData []byte
	p := &Publisher{
		subject: "aki.checks",
		publish: func(subject string, data []byte) error {
			gotSubject, gotData = subject, data
			return nil
		},
	}

	checked := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	result := models.CheckResult{
		SiteName:     "森林公園",
		ConditionMet: true,
		Items:        []string{"12月27日(土) 空き枠：1組"},
		CheckedAt:    checked,
	}
	if err := p.Publish(context.Background(), NewCheckEvent(result, true)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if gotSubject != "aki.checks.available" {
		t.Errorf("subject = %q", gotSubject)
	}
	var ev CheckEvent
	if err := json.Unmarshal(gotData, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev.Site != "森林公園" || !ev.Notified || len(ev.Items) != 1 || !ev.CheckedAt.Equal(checked) {
		t.Errorf("event = %+v", ev)
	}
}

func TestPublish_ErrorStatus(t *testing.T) {
	var gotSubject string
	p := &Publisher{
		subject: "aki.checks",
		publish: func(subject string, data []byte) error {
			gotSubject = subject
			return errors.New("nats: connection closed")
		},
	}

	err := p.Publish(context.Background(), NewCheckEvent(models.CheckResult{SiteName: "a", Error: "HTTP 503"}, false))
	if err == nil {
		t.Error("expected publish error")
	}
	if gotSubject != "aki.checks.error" {
		t.Errorf("subject = %q", gotSubject)
	}
}

func TestPublish_ContextDone(t *testing.T) {
	p := &Publisher{subject: "s", publish: func(string, []byte) error { t.Error("should not publish"); return nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, CheckEvent{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}
