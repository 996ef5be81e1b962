// Package state holds the status document for one run: loaded once at the
// start, updated once per site check, and persisted once at the end.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/aki-watcher/internal/decision"
	"github.com/pauljones0/aki-watcher/internal/models"
	"github.com/pauljones0/aki-watcher/internal/storage"
)

// ProductMemory is how long notified product names suppress repeat alerts.
const ProductMemory = 24 * time.Hour

var (
	ErrAlreadyLoaded    = errors.New("state already loaded for this run")
	ErrAlreadyPersisted = errors.New("state already persisted for this run")
	ErrNotLoaded        = errors.New("state not loaded")
)

// Backend reads and writes the whole status document. Load returns (nil, nil)
// when nothing has been stored yet.
type Backend interface {
	Load(ctx context.Context) (*models.StatusData, error)
	Save(ctx context.Context, data *models.StatusData) error
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is safe for concurrent use, though a run checks sites one at a time.
type Store struct {
	mu        sync.Mutex
	backend   Backend
	now       func() time.Time
	data      *models.StatusData
	loaded    bool
	persisted bool
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the document from the backend. A missing document starts an
// empty one; so does a corrupt one, with a warning.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return ErrAlreadyLoaded
	}

	data, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		slog.Warn("Failed to decode status document, starting fresh", "error", err)
		data = nil
	case err != nil:
		return fmt.Errorf("load state: %w", err)
	}
	if data == nil {
		data = models.NewStatusData(s.now())
	}

	s.data = data
	s.loaded = true
	slog.Info("State loaded", "sites", len(data.Sites), "lastUpdated", data.LastUpdated)
	return nil
}

// Get returns a copy of the stored state for name.
func (s *Store) Get(name string) (models.SiteState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(name); i >= 0 {
		return s.data.Sites[i].Clone(), true
	}
	return models.SiteState{}, false
}

// RecordCheck stores the outcome of one site check. LastNotified only moves
// when notified is true; otherwise it and NotifiedProducts are carried
// forward from the previous record.
func (s *Store) RecordCheck(result models.CheckResult, notified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure()
	now := s.now()

	next := models.SiteState{
		Name:        result.SiteName,
		Status:      result.Status(),
		LastChecked: now,
	}
	if notified {
		t := now
		next.LastNotified = &t
	}
	if next.Status == models.StatusError {
		next.ErrorMessage = result.Error
	}

	i := s.index(result.SiteName)
	if i >= 0 {
		prev := s.data.Sites[i]
		if !notified && prev.LastNotified != nil {
			t := *prev.LastNotified
			next.LastNotified = &t
		}
		if prev.NotifiedProducts != nil {
			next.NotifiedProducts = append([]string(nil), prev.NotifiedProducts...)
		}
		next.NotifyPending = prev.NotifyPending && next.Status == models.StatusAvailable && !notified
		s.data.Sites[i] = next
	} else {
		s.data.Sites = append(s.data.Sites, next)
	}
	s.data.LastUpdated = now
}

// RecordNotifiedProducts adds names to the site's notified set, keeping the
// first-seen order. Unknown sites are ignored.
func (s *Store) RecordNotifiedProducts(name string, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(name)
	if i < 0 {
		return
	}
	site := &s.data.Sites[i]
	site.NotifiedProducts = append(site.NotifiedProducts, decision.NewItems(dedupe(names), site.NotifiedProducts)...)
}

// FilterNewProducts returns the names not yet notified for the site. The
// notified set is forgotten once ProductMemory has passed since the last
// notification.
func (s *Store) FilterNewProducts(name string, names []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(name)
	if i < 0 {
		return decision.NewItems(names, nil)
	}
	site := &s.data.Sites[i]
	if site.LastNotified != nil && len(site.NotifiedProducts) > 0 {
		elapsed := s.now().Sub(*site.LastNotified)
		if elapsed >= ProductMemory {
			slog.Info("Clearing notified products", "site", name, "since_last_notification", elapsed.Round(time.Minute).String())
			site.NotifiedProducts = []string{}
		}
	}
	return decision.NewItems(names, site.NotifiedProducts)
}

// MarkNotifyPending flags that the site's alert was due but not delivered.
// Call it after RecordCheck.
func (s *Store) MarkNotifyPending(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(name); i >= 0 {
		s.data.Sites[i].NotifyPending = true
	}
}

// Persist writes the whole document through the backend. It succeeds at most
// once per run.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	if s.persisted {
		return ErrAlreadyPersisted
	}
	if err := s.backend.Save(ctx, s.data.Clone()); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	s.persisted = true
	return nil
}

// Snapshot returns a copy of the current document.
func (s *Store) Snapshot() *models.StatusData {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure()
	return s.data.Clone()
}

func (s *Store) ensure() {
	if s.data == nil {
		s.data = models.NewStatusData(s.now())
	}
}

func (s *Store) index(name string) int {
	if s.data == nil {
		return -1
	}
	for i := range s.data.Sites {
		if s.data.Sites[i].Name == name {
			return i
		}
	}
	return -1
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
