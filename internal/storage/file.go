package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// DefaultStatusPath is where the status document lives when nothing else is configured.
const DefaultStatusPath = "docs/status.json"

// File keeps the status document as an indented JSON file.
type File struct {
	path string
}

func NewFile(path string) *File {
	if path == "" {
		path = DefaultStatusPath
	}
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

func (f *File) Load(ctx context.Context) (*models.StatusData, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status file %s: %w", f.path, err)
	}
	return decode(b)
}

// Save writes to a temporary file in the same directory and renames it over
// the target, so readers never see a half-written document.
func (f *File) Save(ctx context.Context, data *models.StatusData) error {
	b, err := encode(data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary status file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temporary status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temporary status file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		slog.Warn("Failed to set status file permissions", "path", tmpName, "error", err)
	}

	// Retry the rename a few times; it can fail transiently on Windows.
	var renameErr error
	for attempt := 0; attempt < 3; attempt++ {
		if renameErr = os.Rename(tmpName, f.path); renameErr == nil {
			break
		}
		slog.Warn("Failed to rename status file, retrying", "attempt", attempt+1, "error", renameErr)
		time.Sleep(100 * time.Millisecond)
	}
	if renameErr != nil {
		if err := os.Remove(tmpName); err != nil {
			slog.Error("Failed to clean up temporary status file", "path", tmpName, "error", err)
		}
		return fmt.Errorf("rename status file after 3 attempts: %w", renameErr)
	}

	slog.Debug("Status saved to file", "path", f.path, "sites", len(data.Sites))
	return nil
}
