package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// DefaultStatusObject is the object name used when STATUS_OBJECT is unset.
const DefaultStatusObject = "status.json"

// GCS keeps the status document as a single Cloud Storage object.
type GCS struct {
	client     *cloudstorage.Client
	bucket     string
	object     string
	retryDelay time.Duration
}

func NewGCS(client *cloudstorage.Client, bucket, object string) *GCS {
	if object == "" {
		object = DefaultStatusObject
	}
	return &GCS{client: client, bucket: bucket, object: object, retryDelay: time.Second}
}

func (g *GCS) retryOptions(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(g.retryDelay),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(2 * g.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retrying status operation after error", "op", op, "attempt", n, "bucket", g.bucket, "object", g.object, "error", err)
		}),
	}
}

func (g *GCS) Load(ctx context.Context) (*models.StatusData, error) {
	var b []byte
	missing := false
	err := retry.Do(
		func() error {
			r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
			if err != nil {
				if errors.Is(err, cloudstorage.ErrObjectNotExist) {
					missing = true
					return nil
				}
				return fmt.Errorf("open storage reader: %w", err)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					slog.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()
			b, err = io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read from storage: %w", err)
			}
			return nil
		},
		g.retryOptions(ctx, "load")...,
	)
	if err != nil {
		return nil, fmt.Errorf("load gs://%s/%s after retries: %w", g.bucket, g.object, err)
	}
	if missing {
		return nil, nil
	}
	return decode(b)
}

func (g *GCS) Save(ctx context.Context, data *models.StatusData) error {
	b, err := encode(data)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
			w.ContentType = "application/json"
			// Small document: one multipart request instead of a resumable session.
			w.ChunkSize = 0
			if _, writeErr := w.Write(b); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					slog.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		g.retryOptions(ctx, "save")...,
	)
	if err != nil {
		return fmt.Errorf("save gs://%s/%s after retries: %w", g.bucket, g.object, err)
	}

	slog.Info("Status saved", "bucket", g.bucket, "object", g.object, "sites", len(data.Sites))
	return nil
}
