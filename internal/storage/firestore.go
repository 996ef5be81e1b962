package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/aki-watcher/internal/models"
)

const (
	firestoreCollection = "watcher"
	firestoreDocument   = "status"
)

// Firestore keeps the status document as a single Firestore document.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) doc() *firestore.DocumentRef {
	return f.client.Collection(firestoreCollection).Doc(firestoreDocument)
}

func (f *Firestore) Load(ctx context.Context) (*models.StatusData, error) {
	snap, err := f.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status document: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}

	var data models.StatusData
	if err := snap.DataTo(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if data.Sites == nil {
		data.Sites = []models.SiteState{}
	}
	return &data, nil
}

// Save replaces the whole document in one write.
func (f *Firestore) Save(ctx context.Context, data *models.StatusData) error {
	if _, err := f.doc().Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write status document: %w", err)
	}
	return nil
}
