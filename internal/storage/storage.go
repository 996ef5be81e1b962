// Package storage persists the watcher's status document. Every backend
// stores the whole document as one unit and returns (nil, nil) from Load when
// nothing has been written yet.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// ErrCorrupt is returned by Load when a document exists but cannot be decoded.
var ErrCorrupt = errors.New("status document is corrupt")

func encode(data *models.StatusData) ([]byte, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return append(b, '\n'), nil
}

func decode(b []byte) (*models.StatusData, error) {
	var data models.StatusData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if data.Sites == nil {
		data.Sites = []models.SiteState{}
	}
	return &data, nil
}
